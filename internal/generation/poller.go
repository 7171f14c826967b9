package generation

import (
	"context"
	"fmt"
	"time"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Poller repeatedly checks a submitted job until it finishes, fails, times
// out or the context is cancelled.
type Poller struct {
	client             BackendClient
	interval           time.Duration
	maxAttempts        int
	maxTransportErrors int
	logger             *zap.Logger
}

// NewPoller creates a poller with the given cadence and limits.
func NewPoller(client BackendClient, interval time.Duration, maxAttempts, maxTransportErrors int, logger *zap.Logger) *Poller {
	return &Poller{
		client:             client,
		interval:           interval,
		maxAttempts:        maxAttempts,
		maxTransportErrors: maxTransportErrors,
		logger:             logger.Named("Poller"),
	}
}

// Poll blocks until the job reaches a terminal state and returns the video
// URL on success. Ошибки транспорта считаются подряд: успешный ответ
// сбрасывает счетчик, серия из maxTransportErrors подряд завершает поллинг
// с models.ErrStatusCheckFailed. Исчерпание попыток дает
// models.ErrGenerationTimeout.
func (p *Poller) Poll(ctx context.Context, statusURL, refNo string, userID uuid.UUID) (string, error) {
	log := p.logger.With(zap.String("refNo", refNo), zap.String("userID", userID.String()))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	transportErrors := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Info("Polling cancelled", zap.Int("attempt", attempt))
			return "", ctx.Err()
		case <-ticker.C:
		}

		result, err := p.client.CheckStatus(ctx, statusURL, refNo, userID)
		if err != nil {
			transportErrors++
			log.Warn("Status check failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("consecutiveErrors", transportErrors),
			)
			if transportErrors >= p.maxTransportErrors {
				log.Error("Too many consecutive status check failures, giving up")
				return "", fmt.Errorf("%w: %d consecutive transport errors", models.ErrStatusCheckFailed, transportErrors)
			}
			continue
		}
		transportErrors = 0

		switch result.Status {
		case StatusCompleted:
			if result.VideoURL == "" {
				log.Error("Backend reported completion without a video URL")
				return "", models.ErrGenerationFailed
			}
			log.Info("Generation completed", zap.Int("attempts", attempt))
			return result.VideoURL, nil
		case StatusFailed:
			log.Warn("Backend reported generation failure", zap.String("message", result.Message))
			if result.Message != "" {
				return "", fmt.Errorf("%w: %s", models.ErrGenerationFailed, result.Message)
			}
			return "", models.ErrGenerationFailed
		default:
			log.Debug("Generation still in progress", zap.Int("attempt", attempt), zap.String("status", result.Status))
		}
	}

	log.Warn("Polling attempts exhausted", zap.Int("maxAttempts", p.maxAttempts))
	return "", models.ErrGenerationTimeout
}
