package repository

import (
	"context"
	"fmt"

	"ecom-studio/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgTransactionRepository implements TransactionRepository
var _ TransactionRepository = (*pgTransactionRepository)(nil)

type pgTransactionRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgTransactionRepository creates a new PostgreSQL-backed TransactionRepository.
func NewPgTransactionRepository(db DBTX, logger *zap.Logger) TransactionRepository {
	return &pgTransactionRepository{
		db:     db,
		logger: logger.Named("PgTransactionRepo"),
	}
}

// Insert appends a ledger history row.
func (r *pgTransactionRepository) Insert(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, amount, images_count, transaction_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("userID", tx.UserID.String()), zap.Int("amount", tx.Amount))
	err := r.db.QueryRow(ctx, query, tx.UserID, tx.Amount, tx.ImagesCount, tx.TransactionType).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert transaction", zap.Error(err), zap.String("userID", tx.UserID.String()))
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListByUser returns the user's transaction history, newest first.
func (r *pgTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	query := `
		SELECT id, user_id, amount, images_count, transaction_type, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	var txs []models.Transaction
	if err := pgxscan.Select(ctx, r.db, &txs, query, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list transactions", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
