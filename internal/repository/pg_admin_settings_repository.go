package repository

import (
	"context"
	"errors"
	"fmt"

	"ecom-studio/internal/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgAdminSettingsRepository implements AdminSettingsRepository
var _ AdminSettingsRepository = (*pgAdminSettingsRepository)(nil)

type pgAdminSettingsRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgAdminSettingsRepository creates a new PostgreSQL-backed AdminSettingsRepository.
func NewPgAdminSettingsRepository(db DBTX, logger *zap.Logger) AdminSettingsRepository {
	return &pgAdminSettingsRepository{
		db:     db,
		logger: logger.Named("PgAdminSettingsRepo"),
	}
}

// Get returns the raw setting value for a key.
func (r *pgAdminSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT setting_value FROM admin_settings WHERE setting_key = $1`
	var value string
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrSettingNotFound
		}
		r.logger.Error("Failed to get admin setting", zap.Error(err), zap.String("key", key))
		return "", fmt.Errorf("failed to get admin setting: %w", err)
	}
	return value, nil
}

// Set upserts the setting value for a key.
func (r *pgAdminSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO admin_settings (setting_key, setting_value) VALUES ($1, $2)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = $2, updated_at = NOW()`
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		r.logger.Error("Failed to set admin setting", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to set admin setting: %w", err)
	}
	r.logger.Info("Admin setting updated", zap.String("key", key), zap.String("value", value))
	return nil
}
