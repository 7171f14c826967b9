package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgProfileRepository implements ProfileRepository
var _ ProfileRepository = (*pgProfileRepository)(nil)

type pgProfileRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgProfileRepository creates a new PostgreSQL-backed ProfileRepository.
func NewPgProfileRepository(db DBTX, logger *zap.Logger) ProfileRepository {
	return &pgProfileRepository{
		db:     db,
		logger: logger.Named("PgProfileRepo"),
	}
}

// CreateProfile inserts a zero-balance profile for a new user.
func (r *pgProfileRepository) CreateProfile(ctx context.Context, userID uuid.UUID) error {
	query := `INSERT INTO profiles (user_id, credits) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		r.logger.Error("Failed to create profile", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetCredits returns the current balance. Missing profiles read as zero.
func (r *pgProfileRepository) GetCredits(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT credits FROM profiles WHERE user_id = $1`
	var credits int
	err := r.db.QueryRow(ctx, query, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		r.logger.Error("Failed to get credits", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}
	return credits, nil
}

// DeductCredits subtracts cost from the balance only if the balance covers it.
// Условие credits >= cost в самом UPDATE гарантирует, что баланс не уйдет в минус
// даже при гонке двух одновременных списаний.
func (r *pgProfileRepository) DeductCredits(ctx context.Context, userID uuid.UUID, cost int) (bool, error) {
	query := `UPDATE profiles SET credits = credits - $2, updated_at = NOW() WHERE user_id = $1 AND credits >= $2`
	tag, err := r.db.Exec(ctx, query, userID, cost)
	if err != nil {
		r.logger.Error("Failed to deduct credits", zap.Error(err), zap.String("userID", userID.String()), zap.Int("cost", cost))
		return false, fmt.Errorf("failed to deduct credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Credit deduction rejected: insufficient balance", zap.String("userID", userID.String()), zap.Int("cost", cost))
		return false, nil
	}
	return true, nil
}

// AddCredits increases the balance by amount; the balance never drops below zero.
func (r *pgProfileRepository) AddCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	query := `
		INSERT INTO profiles (user_id, credits) VALUES ($1, GREATEST($2, 0))
		ON CONFLICT (user_id) DO UPDATE
		SET credits = GREATEST(profiles.credits + $2, 0), updated_at = NOW()`
	if _, err := r.db.Exec(ctx, query, userID, amount); err != nil {
		r.logger.Error("Failed to add credits", zap.Error(err), zap.String("userID", userID.String()), zap.Int("amount", amount))
		return fmt.Errorf("failed to add credits: %w", err)
	}
	return nil
}
