package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditService manages pricing, balance checks and the credit ledger.
type CreditService interface {
	// GetPricing returns the current pricing settings with defaults applied.
	GetPricing(ctx context.Context) (*models.PricingSettings, error)

	// SetPricing stores new pricing settings (admin operation).
	SetPricing(ctx context.Context, settings models.PricingSettings) error

	// EffectivePricePerImage computes the discounted per-image price.
	EffectivePricePerImage(ctx context.Context) (int, error)

	// GetBalance returns the user's current credit balance.
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)

	// CheckCredits verifies the balance covers a generation of imageCount
	// images. Returns the total cost and the shortfall (0 when covered).
	CheckCredits(ctx context.Context, userID uuid.UUID, imageCount int) (cost, shortfall int, err error)

	// DeductForGeneration deducts the cost of a generation and records a
	// ledger entry. Returns *models.InsufficientCreditsError when the
	// balance does not cover the cost.
	DeductForGeneration(ctx context.Context, userID uuid.UUID, imageCount int) (int, error)

	// AdjustCredits changes a user's balance by delta (admin operation) and
	// records a ledger entry.
	AdjustCredits(ctx context.Context, userID uuid.UUID, delta int) error

	// ListTransactions returns the user's ledger history, newest first.
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// Compile-time check to ensure creditServiceImpl implements CreditService
var _ CreditService = (*creditServiceImpl)(nil)

type creditServiceImpl struct {
	profileRepo  repository.ProfileRepository
	txRepo       repository.TransactionRepository
	settingsRepo repository.AdminSettingsRepository
	logger       *zap.Logger
}

// NewCreditService creates a new instance of creditServiceImpl.
func NewCreditService(
	profileRepo repository.ProfileRepository,
	txRepo repository.TransactionRepository,
	settingsRepo repository.AdminSettingsRepository,
	logger *zap.Logger,
) CreditService {
	return &creditServiceImpl{
		profileRepo:  profileRepo,
		txRepo:       txRepo,
		settingsRepo: settingsRepo,
		logger:       logger.Named("CreditService"),
	}
}

// GetPricing reads the pricing pair from admin settings, substituting
// defaults for absent keys.
func (s *creditServiceImpl) GetPricing(ctx context.Context) (*models.PricingSettings, error) {
	basePrice, err := s.readIntSetting(ctx, models.SettingVideoPricePerImage, models.DefaultVideoPricePerImage)
	if err != nil {
		return nil, err
	}
	discountRate, err := s.readIntSetting(ctx, models.SettingDiscountRate, models.DefaultDiscountRate)
	if err != nil {
		return nil, err
	}
	return &models.PricingSettings{BasePrice: basePrice, DiscountRate: discountRate}, nil
}

// SetPricing validates and persists the pricing settings.
func (s *creditServiceImpl) SetPricing(ctx context.Context, settings models.PricingSettings) error {
	if settings.BasePrice < 0 || settings.DiscountRate < 0 || settings.DiscountRate > 100 {
		return models.ErrInvalidSettings
	}
	if err := s.settingsRepo.Set(ctx, models.SettingVideoPricePerImage, strconv.Itoa(settings.BasePrice)); err != nil {
		return fmt.Errorf("failed to store base price: %w", err)
	}
	if err := s.settingsRepo.Set(ctx, models.SettingDiscountRate, strconv.Itoa(settings.DiscountRate)); err != nil {
		return fmt.Errorf("failed to store discount rate: %w", err)
	}
	s.logger.Info("Pricing settings updated",
		zap.Int("basePrice", settings.BasePrice),
		zap.Int("discountRate", settings.DiscountRate),
	)
	return nil
}

// EffectivePricePerImage applies the discount to the base price:
// round(base * (100 - discount) / 100).
func (s *creditServiceImpl) EffectivePricePerImage(ctx context.Context) (int, error) {
	pricing, err := s.GetPricing(ctx)
	if err != nil {
		return 0, err
	}
	price := math.Round(float64(pricing.BasePrice) * float64(100-pricing.DiscountRate) / 100.0)
	return int(price), nil
}

// GetBalance returns the user's current balance.
func (s *creditServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.profileRepo.GetCredits(ctx, userID)
}

// CheckCredits computes the generation cost and the shortfall against the
// current balance. Shortfall of zero means the generation is affordable.
func (s *creditServiceImpl) CheckCredits(ctx context.Context, userID uuid.UUID, imageCount int) (int, int, error) {
	if imageCount <= 0 {
		return 0, 0, models.ErrSelectionEmpty
	}
	perImage, err := s.EffectivePricePerImage(ctx)
	if err != nil {
		return 0, 0, err
	}
	cost := perImage * imageCount

	balance, err := s.profileRepo.GetCredits(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if balance < cost {
		return cost, cost - balance, nil
	}
	return cost, 0, nil
}

// DeductForGeneration deducts the generation cost and appends a ledger row.
// Списание и запись в историю - два отдельных шага. Если запись в историю
// не удалась, баланс уже списан; ошибку логируем и не откатываем.
func (s *creditServiceImpl) DeductForGeneration(ctx context.Context, userID uuid.UUID, imageCount int) (int, error) {
	cost, shortfall, err := s.CheckCredits(ctx, userID, imageCount)
	if err != nil {
		return 0, err
	}
	if shortfall > 0 {
		return cost, &models.InsufficientCreditsError{Cost: cost, Balance: cost - shortfall, Shortfall: shortfall}
	}

	ok, err := s.profileRepo.DeductCredits(ctx, userID, cost)
	if err != nil {
		return cost, fmt.Errorf("failed to deduct credits: %w", err)
	}
	if !ok {
		// Баланс изменился между проверкой и списанием: перечитываем его,
		// чтобы вернуть клиенту актуальную нехватку
		balance, balErr := s.profileRepo.GetCredits(ctx, userID)
		if balErr != nil {
			balance = 0
		}
		missing := cost - balance
		if missing < 0 {
			missing = 0
		}
		return cost, &models.InsufficientCreditsError{Cost: cost, Balance: balance, Shortfall: missing}
	}

	tx := &models.Transaction{
		UserID:          userID,
		Amount:          -cost,
		ImagesCount:     imageCount,
		TransactionType: models.TransactionVideoGeneration,
	}
	if err := s.txRepo.Insert(ctx, tx); err != nil {
		s.logger.Error("Credits deducted but ledger insert failed",
			zap.Error(err),
			zap.String("userID", userID.String()),
			zap.Int("cost", cost),
		)
	}

	s.logger.Info("Credits deducted for generation",
		zap.String("userID", userID.String()),
		zap.Int("cost", cost),
		zap.Int("imageCount", imageCount),
	)
	return cost, nil
}

// AdjustCredits applies an admin balance change and records it.
func (s *creditServiceImpl) AdjustCredits(ctx context.Context, userID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	if err := s.profileRepo.AddCredits(ctx, userID, delta); err != nil {
		return fmt.Errorf("failed to adjust credits: %w", err)
	}
	tx := &models.Transaction{
		UserID:          userID,
		Amount:          delta,
		TransactionType: models.TransactionAdminAdjustment,
	}
	if err := s.txRepo.Insert(ctx, tx); err != nil {
		s.logger.Error("Balance adjusted but ledger insert failed",
			zap.Error(err),
			zap.String("userID", userID.String()),
			zap.Int("delta", delta),
		)
	}
	s.logger.Info("Admin credit adjustment applied",
		zap.String("userID", userID.String()),
		zap.Int("delta", delta),
	)
	return nil
}

// ListTransactions returns the user's ledger history.
func (s *creditServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return s.txRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *creditServiceImpl) readIntSetting(ctx context.Context, key string, def int) (int, error) {
	raw, err := s.settingsRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrSettingNotFound) {
			return def, nil
		}
		return 0, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn("Setting has non-numeric value, using default",
			zap.String("key", key), zap.String("value", raw))
		return def, nil
	}
	return value, nil
}
