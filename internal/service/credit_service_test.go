package service

import (
	"context"
	"errors"
	"testing"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory фейки репозиториев для unit-тестов сервиса кредитов.

type fakeProfileRepo struct {
	credits   map[uuid.UUID]int
	deductErr error
	// beforeDeduct имитирует параллельное изменение баланса между
	// проверкой и списанием
	beforeDeduct func()
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{credits: make(map[uuid.UUID]int)}
}

func (f *fakeProfileRepo) CreateProfile(ctx context.Context, userID uuid.UUID) error {
	f.credits[userID] = 0
	return nil
}

func (f *fakeProfileRepo) GetCredits(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.credits[userID], nil
}

func (f *fakeProfileRepo) DeductCredits(ctx context.Context, userID uuid.UUID, cost int) (bool, error) {
	if f.deductErr != nil {
		return false, f.deductErr
	}
	if f.beforeDeduct != nil {
		f.beforeDeduct()
	}
	if f.credits[userID] < cost {
		return false, nil
	}
	f.credits[userID] -= cost
	return true, nil
}

func (f *fakeProfileRepo) AddCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	balance := f.credits[userID] + amount
	if balance < 0 {
		balance = 0
	}
	f.credits[userID] = balance
	return nil
}

type fakeTransactionRepo struct {
	inserted  []models.Transaction
	insertErr error
}

func (f *fakeTransactionRepo) Insert(ctx context.Context, tx *models.Transaction) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *tx)
	return nil
}

func (f *fakeTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return f.inserted, nil
}

type fakeSettingsRepo struct {
	values map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: make(map[string]string)}
}

func (f *fakeSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", models.ErrSettingNotFound
	}
	return v, nil
}

func (f *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func newTestCreditService(profiles *fakeProfileRepo, txs *fakeTransactionRepo, settings *fakeSettingsRepo) CreditService {
	return NewCreditService(profiles, txs, settings, zap.NewNop())
}

func TestEffectivePricePerImage(t *testing.T) {
	ctx := context.Background()
	settings := newFakeSettingsRepo()
	svc := newTestCreditService(newFakeProfileRepo(), &fakeTransactionRepo{}, settings)

	// Без настроек действуют значения по умолчанию
	price, err := svc.EffectivePricePerImage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, price)

	cases := []struct {
		base     string
		discount string
		want     int
	}{
		{"100", "0", 100},
		{"100", "10", 90},
		{"100", "25", 75},
		{"100", "100", 0},
		{"90", "33", 60},  // round(90*0.67) = round(60.3)
		{"150", "33", 101}, // round(150*0.67) = round(100.5)
		{"7", "50", 4},    // round(3.5) = 4
	}
	for _, tc := range cases {
		settings.values[models.SettingVideoPricePerImage] = tc.base
		settings.values[models.SettingDiscountRate] = tc.discount
		price, err := svc.EffectivePricePerImage(ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.want, price, "base=%s discount=%s", tc.base, tc.discount)
	}
}

func TestCheckCreditsShortfall(t *testing.T) {
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	svc := newTestCreditService(profiles, &fakeTransactionRepo{}, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 250

	// 3 изображения по 100 кредитов: не хватает 50
	cost, shortfall, err := svc.CheckCredits(ctx, userID, 3)
	require.NoError(t, err)
	assert.Equal(t, 300, cost)
	assert.Equal(t, 50, shortfall)

	// 2 изображения: хватает
	cost, shortfall, err = svc.CheckCredits(ctx, userID, 2)
	require.NoError(t, err)
	assert.Equal(t, 200, cost)
	assert.Equal(t, 0, shortfall)

	_, _, err = svc.CheckCredits(ctx, userID, 0)
	assert.ErrorIs(t, err, models.ErrSelectionEmpty)
}

func TestDeductForGeneration(t *testing.T) {
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	txs := &fakeTransactionRepo{}
	svc := newTestCreditService(profiles, txs, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 500

	cost, err := svc.DeductForGeneration(ctx, userID, 2)
	require.NoError(t, err)
	assert.Equal(t, 200, cost)
	assert.Equal(t, 300, profiles.credits[userID])

	// Запись в истории: отрицательная сумма, тип video_generation
	require.Len(t, txs.inserted, 1)
	assert.Equal(t, -200, txs.inserted[0].Amount)
	assert.Equal(t, 2, txs.inserted[0].ImagesCount)
	assert.Equal(t, models.TransactionVideoGeneration, txs.inserted[0].TransactionType)
}

func TestDeductForGenerationInsufficient(t *testing.T) {
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	svc := newTestCreditService(profiles, &fakeTransactionRepo{}, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 150

	_, err := svc.DeductForGeneration(ctx, userID, 2)
	require.ErrorIs(t, err, models.ErrInsufficientCredits)
	// Баланс не изменился
	assert.Equal(t, 150, profiles.credits[userID])

	// Ошибка несет точную нехватку для ответа 402
	var insufficient *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 200, insufficient.Cost)
	assert.Equal(t, 150, insufficient.Balance)
	assert.Equal(t, 50, insufficient.Shortfall)
}

func TestDeductForGenerationLostRace(t *testing.T) {
	// Проверка баланса проходит, но к моменту списания параллельная
	// генерация уже забрала часть кредитов
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	svc := newTestCreditService(profiles, &fakeTransactionRepo{}, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 300
	profiles.beforeDeduct = func() { profiles.credits[userID] = 120 }

	_, err := svc.DeductForGeneration(ctx, userID, 2)
	require.ErrorIs(t, err, models.ErrInsufficientCredits)

	var insufficient *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 200, insufficient.Cost)
	assert.Equal(t, 120, insufficient.Balance)
	assert.Equal(t, 80, insufficient.Shortfall)
}

func TestDeductSurvivesLedgerFailure(t *testing.T) {
	// Списание и запись в историю - два отдельных шага: если вставка в
	// историю падает, списание не откатывается
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	txs := &fakeTransactionRepo{insertErr: errors.New("connection lost")}
	svc := newTestCreditService(profiles, txs, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 500

	cost, err := svc.DeductForGeneration(ctx, userID, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, cost)
	assert.Equal(t, 400, profiles.credits[userID])
	assert.Empty(t, txs.inserted)
}

func TestAdjustCredits(t *testing.T) {
	ctx := context.Background()
	profiles := newFakeProfileRepo()
	txs := &fakeTransactionRepo{}
	svc := newTestCreditService(profiles, txs, newFakeSettingsRepo())

	userID := uuid.New()
	profiles.credits[userID] = 100

	require.NoError(t, svc.AdjustCredits(ctx, userID, 50))
	assert.Equal(t, 150, profiles.credits[userID])

	require.NoError(t, svc.AdjustCredits(ctx, userID, -200))
	// Баланс не уходит в минус
	assert.Equal(t, 0, profiles.credits[userID])

	require.Len(t, txs.inserted, 2)
	assert.Equal(t, models.TransactionAdminAdjustment, txs.inserted[0].TransactionType)

	// Нулевая корректировка не пишет историю
	require.NoError(t, svc.AdjustCredits(ctx, userID, 0))
	assert.Len(t, txs.inserted, 2)
}

func TestSetPricingValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestCreditService(newFakeProfileRepo(), &fakeTransactionRepo{}, newFakeSettingsRepo())

	assert.ErrorIs(t, svc.SetPricing(ctx, models.PricingSettings{BasePrice: -1, DiscountRate: 0}), models.ErrInvalidSettings)
	assert.ErrorIs(t, svc.SetPricing(ctx, models.PricingSettings{BasePrice: 100, DiscountRate: 101}), models.ErrInvalidSettings)
	assert.NoError(t, svc.SetPricing(ctx, models.PricingSettings{BasePrice: 120, DiscountRate: 15}))
}
