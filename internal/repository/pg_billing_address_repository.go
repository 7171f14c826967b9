package repository

import (
	"context"
	"errors"
	"fmt"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgBillingAddressRepository implements BillingAddressRepository
var _ BillingAddressRepository = (*pgBillingAddressRepository)(nil)

type pgBillingAddressRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgBillingAddressRepository creates a new PostgreSQL-backed BillingAddressRepository.
func NewPgBillingAddressRepository(db DBTX, logger *zap.Logger) BillingAddressRepository {
	return &pgBillingAddressRepository{
		db:     db,
		logger: logger.Named("PgBillingAddressRepo"),
	}
}

// Get retrieves the user's billing address.
func (r *pgBillingAddressRepository) Get(ctx context.Context, userID uuid.UUID) (*models.BillingAddress, error) {
	query := `
		SELECT user_id, full_name, company, line1, line2, city, postal_code, country, vat_number, updated_at
		FROM billing_addresses
		WHERE user_id = $1`
	addr := &models.BillingAddress{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&addr.UserID, &addr.FullName, &addr.Company, &addr.Line1, &addr.Line2,
		&addr.City, &addr.PostalCode, &addr.Country, &addr.VATNumber, &addr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get billing address", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to get billing address: %w", err)
	}
	return addr, nil
}

// Upsert stores the user's billing address.
func (r *pgBillingAddressRepository) Upsert(ctx context.Context, addr *models.BillingAddress) error {
	query := `
		INSERT INTO billing_addresses (user_id, full_name, company, line1, line2, city, postal_code, country, vat_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = $2, company = $3, line1 = $4, line2 = $5, city = $6,
			postal_code = $7, country = $8, vat_number = $9, updated_at = NOW()`
	_, err := r.db.Exec(ctx, query,
		addr.UserID, addr.FullName, addr.Company, addr.Line1, addr.Line2,
		addr.City, addr.PostalCode, addr.Country, addr.VATNumber,
	)
	if err != nil {
		r.logger.Error("Failed to upsert billing address", zap.Error(err), zap.String("userID", addr.UserID.String()))
		return fmt.Errorf("failed to upsert billing address: %w", err)
	}
	return nil
}
