package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecom-studio/internal/models"
	"ecom-studio/internal/service"
	"ecom-studio/internal/sources"
	"ecom-studio/pkg/tasks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// callLog records the order of cross-service calls during a generation.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// scriptedBackend plays a fixed submit answer and a poll script, recording
// every call it receives.
type scriptedBackend struct {
	mu           sync.Mutex
	log          *callLog
	submitResult *SubmitResult
	submitErr    error
	answers      []fakeAnswer
	submitted    []SubmitRequest
	statusCalls  int
}

var _ BackendClient = (*scriptedBackend)(nil)

func (f *scriptedBackend) SubmitGeneration(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.log != nil {
		f.log.add("submit")
	}
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResult, nil
}

func (f *scriptedBackend) CheckStatus(ctx context.Context, statusURL, refNo string, userID uuid.UUID) (*StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.statusCalls
	f.statusCalls++
	if len(f.answers) == 0 {
		return nil, errors.New("unexpected status check")
	}
	if idx >= len(f.answers) {
		idx = len(f.answers) - 1
	}
	a := f.answers[idx]
	return a.result, a.err
}

func (f *scriptedBackend) submissions() []SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmitRequest(nil), f.submitted...)
}

func (f *scriptedBackend) statusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type stubCredits struct {
	mu       sync.Mutex
	log      *callLog
	balance  int
	perImage int
}

var _ service.CreditService = (*stubCredits)(nil)

func (s *stubCredits) GetPricing(ctx context.Context) (*models.PricingSettings, error) {
	return &models.PricingSettings{BasePrice: s.perImage}, nil
}

func (s *stubCredits) SetPricing(ctx context.Context, settings models.PricingSettings) error {
	return nil
}

func (s *stubCredits) EffectivePricePerImage(ctx context.Context) (int, error) {
	return s.perImage, nil
}

func (s *stubCredits) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *stubCredits) CheckCredits(ctx context.Context, userID uuid.UUID, imageCount int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cost := s.perImage * imageCount
	if s.balance < cost {
		return cost, cost - s.balance, nil
	}
	return cost, 0, nil
}

func (s *stubCredits) DeductForGeneration(ctx context.Context, userID uuid.UUID, imageCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log != nil {
		s.log.add("deduct")
	}
	cost := s.perImage * imageCount
	if s.balance < cost {
		return cost, &models.InsufficientCreditsError{Cost: cost, Balance: s.balance, Shortfall: cost - s.balance}
	}
	s.balance -= cost
	return cost, nil
}

func (s *stubCredits) AdjustCredits(ctx context.Context, userID uuid.UUID, delta int) error {
	return nil
}

func (s *stubCredits) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return nil, nil
}

func (s *stubCredits) currentBalance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

type stubGallery struct {
	mu    sync.Mutex
	files []models.UserFile
}

var _ service.GalleryService = (*stubGallery)(nil)

func (s *stubGallery) List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) (*service.GalleryPage, error) {
	return &service.GalleryPage{}, nil
}

func (s *stubGallery) AddFile(ctx context.Context, file *models.UserFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, *file)
	return nil
}

func (s *stubGallery) GetFile(ctx context.Context, userID, fileID uuid.UUID) (*models.UserFile, error) {
	return nil, models.ErrFileNotFound
}

func (s *stubGallery) SetFavorite(ctx context.Context, userID, fileID uuid.UUID, favorite bool) error {
	return nil
}

func (s *stubGallery) MarkViewed(ctx context.Context, userID, fileID uuid.UUID) error {
	return nil
}

func (s *stubGallery) added() []models.UserFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UserFile(nil), s.files...)
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

var _ service.NotificationService = (*stubNotifier)(nil)

func (s *stubNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *stubNotifier) Broadcast(ctx context.Context, message string) (int64, error) {
	return 0, nil
}

func (s *stubNotifier) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	return nil, nil
}

func (s *stubNotifier) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *stubNotifier) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotifier) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *stubNotifier) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

type stubFetcher struct {
	mu       sync.Mutex
	images   []sources.ImageCandidate
	failURLs map[string]bool
	fetched  []string
}

var _ sources.ProductURLFetcher = (*stubFetcher)(nil)

func (s *stubFetcher) FetchImages(ctx context.Context, productURL string) ([]sources.ImageCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, productURL)
	if s.failURLs[productURL] {
		return nil, models.ErrNoImagesFound
	}
	return s.images, nil
}

func (s *stubFetcher) fetchedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

type generationFixture struct {
	svc      Service
	registry *Registry
	backend  *scriptedBackend
	fetcher  *stubFetcher
	credits  *stubCredits
	gallery  *stubGallery
	notifier *stubNotifier
	log      *callLog
}

func newGenerationFixture(backend *scriptedBackend) *generationFixture {
	log := &callLog{}
	backend.log = log
	f := &generationFixture{
		registry: NewRegistry(),
		backend:  backend,
		fetcher:  &stubFetcher{images: candidates("a", "b")},
		credits:  &stubCredits{balance: 1000, perImage: 100, log: log},
		gallery:  &stubGallery{},
		notifier: &stubNotifier{},
		log:      log,
	}
	poller := NewPoller(backend, time.Millisecond, 60, 3, zap.NewNop())
	f.svc = NewService(f.registry, f.fetcher, backend, poller, tasks.NewManager(10), f.credits, f.gallery, f.notifier, zap.NewNop())
	return f
}

// configuredUnit builds a batch with one unit that has a confirmed selection
// of the candidate "a" and default settings.
func (f *generationFixture) configuredUnit(t *testing.T, userID uuid.UUID) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	b := f.svc.CreateBatch(ctx, userID)
	unit, err := f.svc.AddUnitWithCandidates(ctx, userID, b.ID, candidates("a", "b"))
	require.NoError(t, err)
	require.NoError(t, f.svc.SelectImage(ctx, userID, b.ID, unit.ID, "a"))
	require.NoError(t, f.svc.ConfirmSelection(ctx, userID, b.ID, unit.ID))
	return b.ID, unit.ID
}

func waitForUnitState(t *testing.T, b *Batch, unitID uuid.UUID, want UnitState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := b.UnitSnapshot(unitID)
		require.NoError(t, err)
		if snap.State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("unit %s did not reach state %s", unitID, want)
}

func TestGenerateSyncCompletion(t *testing.T) {
	backend := &scriptedBackend{submitResult: &SubmitResult{VideoURL: "https://cdn/video.mp4"}}
	f := newGenerationFixture(backend)
	userID := uuid.New()
	batchID, unitID := f.configuredUnit(t, userID)

	unit, err := f.svc.Generate(context.Background(), userID, batchID, unitID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, unit.State)
	assert.Equal(t, "https://cdn/video.mp4", unit.VideoURL)

	// Синхронный ответ бэкенда: статус не опрашивается вообще
	assert.Zero(t, backend.statusCallCount())

	// Кредиты списаны до отправки задания
	assert.Equal(t, []string{"deduct", "submit"}, f.log.list())
	assert.Equal(t, 900, f.credits.currentBalance())

	subs := backend.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, userID.String(), subs[0].UserID)
	assert.NotEmpty(t, subs[0].RefNo)
	assert.Equal(t, []string{"a"}, subs[0].SelectedImages)
	assert.Equal(t, 1, subs[0].ImageCount)
	require.Len(t, subs[0].Settings, 1)
	assert.Equal(t, DefaultImageSettings(), subs[0].Settings[0])

	// Готовое видео попало в галерею generated, пользователь уведомлен
	files := f.gallery.added()
	require.Len(t, files, 1)
	assert.Equal(t, "https://cdn/video.mp4", files[0].FilePath)
	assert.Equal(t, models.FileTypeVideo, files[0].FileType)
	assert.Equal(t, models.FolderGenerated, files[0].Folder)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestGenerateInsufficientCredits(t *testing.T) {
	backend := &scriptedBackend{submitResult: &SubmitResult{VideoURL: "https://cdn/video.mp4"}}
	f := newGenerationFixture(backend)
	f.credits.balance = 50
	userID := uuid.New()
	batchID, unitID := f.configuredUnit(t, userID)

	_, err := f.svc.Generate(context.Background(), userID, batchID, unitID)
	require.ErrorIs(t, err, models.ErrInsufficientCredits)

	var insufficient *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 50, insufficient.Shortfall)

	// Задание не отправлялось, юнит вернулся в настройки
	assert.Empty(t, backend.submissions())
	b, err := f.registry.Get(userID, batchID)
	require.NoError(t, err)
	snap, err := b.UnitSnapshot(unitID)
	require.NoError(t, err)
	assert.Equal(t, StateConfiguring, snap.State)
}

func TestGenerateAsyncPolling(t *testing.T) {
	backend := &scriptedBackend{
		submitResult: &SubmitResult{StatusURL: "https://backend/status"},
		answers: []fakeAnswer{
			{result: &StatusResult{Status: StatusProcessing}},
			{result: &StatusResult{Status: StatusProcessing}},
			{result: &StatusResult{Status: StatusCompleted, VideoURL: "https://cdn/async.mp4"}},
		},
	}
	f := newGenerationFixture(backend)
	userID := uuid.New()
	batchID, unitID := f.configuredUnit(t, userID)

	unit, err := f.svc.Generate(context.Background(), userID, batchID, unitID)
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, unit.State)

	b, err := f.registry.Get(userID, batchID)
	require.NoError(t, err)
	waitForUnitState(t, b, unitID, StateCompleted)
	assert.Equal(t, 3, backend.statusCallCount())

	snap, err := b.UnitSnapshot(unitID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/async.mp4", snap.VideoURL)

	assert.Eventually(t, func() bool { return len(f.gallery.added()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestGenerateSubmitFailure(t *testing.T) {
	backend := &scriptedBackend{submitErr: errors.New("backend down")}
	f := newGenerationFixture(backend)
	userID := uuid.New()
	batchID, unitID := f.configuredUnit(t, userID)

	_, err := f.svc.Generate(context.Background(), userID, batchID, unitID)
	require.Error(t, err)

	b, err := f.registry.Get(userID, batchID)
	require.NoError(t, err)
	snap, err := b.UnitSnapshot(unitID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Contains(t, snap.FailureReason, "backend down")

	// Кредиты уже списаны, возврата нет
	assert.Equal(t, 900, f.credits.currentBalance())
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "failed")
}

func TestFetchLoopWaitsForConfirmation(t *testing.T) {
	f := newGenerationFixture(&scriptedBackend{})
	ctx := context.Background()
	userID := uuid.New()

	b, err := f.svc.CreateBatchFromProductURLs(ctx, userID, []string{
		"https://shop.example/p/1",
		"https://shop.example/p/2",
	})
	require.NoError(t, err)
	units := b.UnitsSnapshot()
	require.Len(t, units, 2)

	waitForUnitState(t, b, units[0].ID, StateSelecting)

	// Пока выбор первого юнита не подтвержден, второй не загружается
	time.Sleep(20 * time.Millisecond)
	snap, err := b.UnitSnapshot(units[1].ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, snap.State)

	require.NoError(t, f.svc.SelectImage(ctx, userID, b.ID, units[0].ID, "a"))
	require.NoError(t, f.svc.ConfirmSelection(ctx, userID, b.ID, units[0].ID))
	waitForUnitState(t, b, units[1].ID, StateSelecting)

	assert.Equal(t, []string{"https://shop.example/p/1", "https://shop.example/p/2"}, f.fetcher.fetchedURLs())
}

func TestFetchFailureFreesQueue(t *testing.T) {
	f := newGenerationFixture(&scriptedBackend{})
	f.fetcher.failURLs = map[string]bool{"https://shop.example/p/1": true}
	ctx := context.Background()
	userID := uuid.New()

	b, err := f.svc.CreateBatchFromProductURLs(ctx, userID, []string{
		"https://shop.example/p/1",
		"https://shop.example/p/2",
	})
	require.NoError(t, err)
	units := b.UnitsSnapshot()
	require.Len(t, units, 2)

	// Неудачная загрузка первого не блокирует второй
	waitForUnitState(t, b, units[0].ID, StateFailed)
	waitForUnitState(t, b, units[1].ID, StateSelecting)
}
