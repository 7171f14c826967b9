package service

import (
	"context"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService manages user notifications and admin broadcasts.
type NotificationService interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
	Broadcast(ctx context.Context, message string) (int64, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// Compile-time check to ensure notificationServiceImpl implements NotificationService
var _ NotificationService = (*notificationServiceImpl)(nil)

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

// NewNotificationService creates a new instance of notificationServiceImpl.
func NewNotificationService(repo repository.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{
		repo:   repo,
		logger: logger.Named("NotificationService"),
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	n := &models.Notification{UserID: userID, Message: message}
	return s.repo.Insert(ctx, n)
}

func (s *notificationServiceImpl) Broadcast(ctx context.Context, message string) (int64, error) {
	if message == "" {
		return 0, models.ErrInvalidSettings
	}
	count, err := s.repo.Broadcast(ctx, message)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Admin broadcast sent", zap.Int64("recipients", count))
	return count, nil
}

func (s *notificationServiceImpl) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
