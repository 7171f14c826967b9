package repository

import (
	"context"
	"fmt"

	"ecom-studio/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgNotificationRepository implements NotificationRepository
var _ NotificationRepository = (*pgNotificationRepository)(nil)

type pgNotificationRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgNotificationRepository creates a new PostgreSQL-backed NotificationRepository.
func NewPgNotificationRepository(db DBTX, logger *zap.Logger) NotificationRepository {
	return &pgNotificationRepository{
		db:     db,
		logger: logger.Named("PgNotificationRepo"),
	}
}

// Insert stores a notification for a single user.
func (r *pgNotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (user_id, message) VALUES ($1, $2) RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, n.UserID, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err), zap.String("userID", n.UserID.String()))
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// Broadcast inserts the message for every registered user.
func (r *pgNotificationRepository) Broadcast(ctx context.Context, message string) (int64, error) {
	query := `INSERT INTO notifications (user_id, message) SELECT id, $1 FROM users`
	tag, err := r.db.Exec(ctx, query, message)
	if err != nil {
		r.logger.Error("Failed to broadcast notification", zap.Error(err))
		return 0, fmt.Errorf("failed to broadcast notification: %w", err)
	}
	r.logger.Info("Notification broadcast", zap.Int64("recipients", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// ListByUser returns the user's notifications, newest first.
func (r *pgNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, message, is_read, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	var notifications []models.Notification
	if err := pgxscan.Select(ctx, r.db, &notifications, query, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications.
func (r *pgNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.logger.Error("Failed to count unread notifications", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (r *pgNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, notificationID, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Error(err), zap.String("notificationID", notificationID.String()))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkAllRead marks all of the user's notifications as read.
func (r *pgNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT is_read`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		r.logger.Error("Failed to mark all notifications read", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}
