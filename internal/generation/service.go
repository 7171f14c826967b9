package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"ecom-studio/internal/models"
	"ecom-studio/internal/service"
	"ecom-studio/internal/sources"
	"ecom-studio/pkg/tasks"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates batches: candidate fetching, selection, credit
// deduction, submission and result polling.
type Service interface {
	// CreateBatch starts an empty batch session.
	CreateBatch(ctx context.Context, userID uuid.UUID) *Batch

	// CreateBatchFromProductURLs starts a batch with one pending unit per
	// product URL and kicks off sequential candidate fetching.
	CreateBatchFromProductURLs(ctx context.Context, userID uuid.UUID, productURLs []string) (*Batch, error)

	// ImportSpreadsheet parses product URLs from an xlsx workbook and starts
	// a batch from them.
	ImportSpreadsheet(ctx context.Context, userID uuid.UUID, workbook io.Reader) (*Batch, error)

	// AddUnitWithCandidates appends a unit whose images are already known
	// (uploads, library picks).
	AddUnitWithCandidates(ctx context.Context, userID, batchID uuid.UUID, candidates []sources.ImageCandidate) (*Unit, error)

	// AddProductURLUnit appends a pending unit for a product URL and resumes
	// sequential fetching.
	AddProductURLUnit(ctx context.Context, userID, batchID uuid.UUID, productURL string) (*Unit, error)

	// GetBatch returns the batch if it belongs to the user.
	GetBatch(ctx context.Context, userID, batchID uuid.UUID) (*Batch, error)

	// DeleteBatch discards an in-memory batch session.
	DeleteBatch(ctx context.Context, userID, batchID uuid.UUID) error

	// SelectImage / DeselectImage / ConfirmSelection / UpdateSettings /
	// EditAgain mutate one unit under the batch lock.
	SelectImage(ctx context.Context, userID, batchID, unitID uuid.UUID, imageURL string) error
	DeselectImage(ctx context.Context, userID, batchID, unitID uuid.UUID, imageURL string) error
	ConfirmSelection(ctx context.Context, userID, batchID, unitID uuid.UUID) error
	UpdateSettings(ctx context.Context, userID, batchID, unitID uuid.UUID, slot int, settings ImageSettings) error
	EditAgain(ctx context.Context, userID, batchID, unitID uuid.UUID) error

	// Generate deducts credits and submits the unit for video generation.
	// Asynchronous jobs are polled in a background task.
	Generate(ctx context.Context, userID, batchID, unitID uuid.UUID) (*Unit, error)

	// CancelGeneration cancels the polling task of a processing unit.
	CancelGeneration(ctx context.Context, userID, batchID, unitID uuid.UUID) error
}

// Compile-time check to ensure generationService implements Service
var _ Service = (*generationService)(nil)

type generationService struct {
	registry      *Registry
	fetcher       sources.ProductURLFetcher
	client        BackendClient
	poller        *Poller
	taskMgr       *tasks.Manager
	credits       service.CreditService
	gallery       service.GalleryService
	notifications service.NotificationService
	logger        *zap.Logger

	// unit ID -> polling task ID, для отмены
	pollMu    sync.Mutex
	pollTasks map[uuid.UUID]uuid.UUID
}

// NewService creates a new instance of generationService.
func NewService(
	registry *Registry,
	fetcher sources.ProductURLFetcher,
	client BackendClient,
	poller *Poller,
	taskMgr *tasks.Manager,
	credits service.CreditService,
	gallery service.GalleryService,
	notifications service.NotificationService,
	logger *zap.Logger,
) Service {
	return &generationService{
		registry:      registry,
		fetcher:       fetcher,
		client:        client,
		poller:        poller,
		taskMgr:       taskMgr,
		credits:       credits,
		gallery:       gallery,
		notifications: notifications,
		logger:        logger.Named("GenerationService"),
		pollTasks:     make(map[uuid.UUID]uuid.UUID),
	}
}

// CreateBatch starts an empty batch session.
func (s *generationService) CreateBatch(ctx context.Context, userID uuid.UUID) *Batch {
	b := s.registry.Create(userID)
	s.logger.Info("Batch created", zap.String("userID", userID.String()), zap.String("batchID", b.ID.String()))
	return b
}

// CreateBatchFromProductURLs creates pending units and starts the fetch loop.
func (s *generationService) CreateBatchFromProductURLs(ctx context.Context, userID uuid.UUID, productURLs []string) (*Batch, error) {
	if len(productURLs) == 0 {
		return nil, models.ErrInvalidInput
	}
	if len(productURLs) > MaxBatchUnits {
		productURLs = productURLs[:MaxBatchUnits]
	}

	b := s.registry.Create(userID)
	for _, u := range productURLs {
		if err := b.AddUnit(NewUnit(u)); err != nil {
			return nil, err
		}
	}
	s.logger.Info("Batch created from product URLs",
		zap.String("userID", userID.String()),
		zap.String("batchID", b.ID.String()),
		zap.Int("units", len(productURLs)),
	)
	s.startFetchLoop(ctx, b)
	return b, nil
}

// ImportSpreadsheet parses the workbook and builds a batch from its URLs.
func (s *generationService) ImportSpreadsheet(ctx context.Context, userID uuid.UUID, workbook io.Reader) (*Batch, error) {
	urls, err := sources.ParseProductURLs(workbook)
	if err != nil {
		return nil, err
	}
	return s.CreateBatchFromProductURLs(ctx, userID, urls)
}

// AddUnitWithCandidates appends a ready-to-select unit.
func (s *generationService) AddUnitWithCandidates(ctx context.Context, userID, batchID uuid.UUID, candidates []sources.ImageCandidate) (*Unit, error) {
	if len(candidates) == 0 {
		return nil, models.ErrNoImagesFound
	}
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return nil, err
	}
	unit := NewUnitWithCandidates(candidates)
	if err := b.AddUnit(unit); err != nil {
		return nil, err
	}
	snapshot := unit.Snapshot()
	return &snapshot, nil
}

// AddProductURLUnit appends a pending unit and resumes fetching.
func (s *generationService) AddProductURLUnit(ctx context.Context, userID, batchID uuid.UUID, productURL string) (*Unit, error) {
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return nil, err
	}
	unit := NewUnit(productURL)
	if err := b.AddUnit(unit); err != nil {
		return nil, err
	}
	s.startFetchLoop(ctx, b)
	snapshot, err := b.UnitSnapshot(unit.ID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// GetBatch returns the batch if it belongs to the user.
func (s *generationService) GetBatch(ctx context.Context, userID, batchID uuid.UUID) (*Batch, error) {
	return s.registry.Get(userID, batchID)
}

// DeleteBatch discards the session.
func (s *generationService) DeleteBatch(ctx context.Context, userID, batchID uuid.UUID) error {
	return s.registry.Delete(userID, batchID)
}

func (s *generationService) SelectImage(ctx context.Context, userID, batchID, unitID uuid.UUID, imageURL string) error {
	return s.withUnit(userID, batchID, unitID, func(u *Unit) error { return u.SelectImage(imageURL) })
}

func (s *generationService) DeselectImage(ctx context.Context, userID, batchID, unitID uuid.UUID, imageURL string) error {
	return s.withUnit(userID, batchID, unitID, func(u *Unit) error { return u.DeselectImage(imageURL) })
}

func (s *generationService) ConfirmSelection(ctx context.Context, userID, batchID, unitID uuid.UUID) error {
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return err
	}
	if err := b.WithUnit(unitID, func(u *Unit) error { return u.ConfirmSelection() }); err != nil {
		return err
	}
	// Подтверждение выбора открывает загрузку кандидатов следующему юниту
	s.startFetchLoop(ctx, b)
	return nil
}

func (s *generationService) UpdateSettings(ctx context.Context, userID, batchID, unitID uuid.UUID, slot int, settings ImageSettings) error {
	return s.withUnit(userID, batchID, unitID, func(u *Unit) error { return u.UpdateSettings(slot, settings) })
}

func (s *generationService) EditAgain(ctx context.Context, userID, batchID, unitID uuid.UUID) error {
	return s.withUnit(userID, batchID, unitID, func(u *Unit) error { return u.EditAgain() })
}

// Generate deducts credits, submits the job and either completes the unit
// synchronously or starts a polling task.
func (s *generationService) Generate(ctx context.Context, userID, batchID, unitID uuid.UUID) (*Unit, error) {
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return nil, err
	}

	var selected []SelectedImage
	var productURL string
	err = b.WithUnit(unitID, func(u *Unit) error {
		if u.State != StateConfiguring {
			if u.State == StateSubmitting || u.State == StateProcessing {
				return models.ErrGenerationInProgress
			}
			return models.ErrInvalidTransition
		}
		for _, sel := range u.Selected {
			if err := sel.Settings.Validate(); err != nil {
				return err
			}
		}
		selected = append([]SelectedImage(nil), u.Selected...)
		productURL = u.ProductURL
		return u.BeginSubmission()
	})
	if err != nil {
		return nil, err
	}

	// Кредиты списываются до отправки задания
	if _, err := s.credits.DeductForGeneration(ctx, userID, len(selected)); err != nil {
		// Возвращаем юнит в настройки, генерация не началась
		_ = b.WithUnit(unitID, func(u *Unit) error { u.State = StateConfiguring; return nil })
		return nil, err
	}

	refNo := NewRefNo(productCodeFromURL(productURL))
	generationsSubmitted.Inc()

	imageURLs := make([]string, len(selected))
	settings := make([]ImageSettings, len(selected))
	for i, sel := range selected {
		imageURLs[i] = sel.URL
		settings[i] = sel.Settings
	}
	result, err := s.client.SubmitGeneration(ctx, SubmitRequest{
		UserID:         userID.String(),
		RefNo:          refNo,
		SelectedImages: imageURLs,
		ImageCount:     len(imageURLs),
		Settings:       settings,
	})
	if err != nil {
		generationsFailed.Inc()
		s.failUnit(ctx, b, unitID, userID, err.Error())
		return nil, err
	}

	if result.VideoURL != "" {
		// Синхронный ответ: бэкенд вернул готовое видео сразу
		s.completeUnit(ctx, b, unitID, userID, refNo, result.VideoURL)
	} else {
		err = b.WithUnit(unitID, func(u *Unit) error { return u.MarkProcessing(refNo, result.StatusURL) })
		if err != nil {
			return nil, err
		}
		if err := s.startPolling(ctx, b, unitID, userID, refNo, result.StatusURL); err != nil {
			generationsFailed.Inc()
			s.failUnit(ctx, b, unitID, userID, err.Error())
			return nil, err
		}
	}

	snapshot, err := b.UnitSnapshot(unitID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// CancelGeneration cancels the polling task of a processing unit.
func (s *generationService) CancelGeneration(ctx context.Context, userID, batchID, unitID uuid.UUID) error {
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return err
	}
	return b.WithUnit(unitID, func(u *Unit) error {
		if u.State != StateProcessing {
			return models.ErrInvalidTransition
		}
		taskID, ok := s.takePollTask(unitID)
		if !ok {
			return models.ErrInvalidTransition
		}
		if err := s.taskMgr.Cancel(taskID, userID); err != nil {
			return err
		}
		u.MarkFailed("cancelled by user")
		return nil
	})
}

// startFetchLoop fetches candidates for pending units one at a time in a
// background task. The loop stops once a unit reaches selecting and is
// restarted from ConfirmSelection, so the next unit is not touched until the
// previous selection is confirmed. Re-entrant: if a loop is already draining
// the batch the new one exits on the first NextPendingUnit miss.
func (s *generationService) startFetchLoop(ctx context.Context, b *Batch) {
	_, err := s.taskMgr.Submit(ctx, b.UserID, func(taskCtx context.Context) (interface{}, error) {
		for {
			if taskCtx.Err() != nil {
				return nil, taskCtx.Err()
			}
			unit, ok := b.NextPendingUnit()
			if !ok {
				return nil, nil
			}
			candidates, err := s.fetcher.FetchImages(taskCtx, unit.ProductURL)
			if err != nil {
				s.logger.Warn("Candidate fetch failed",
					zap.Error(err),
					zap.String("batchID", b.ID.String()),
					zap.String("productURL", unit.ProductURL),
				)
				_ = b.WithUnit(unit.ID, func(u *Unit) error { u.FailFetch(err.Error()); return nil })
				continue
			}
			_ = b.WithUnit(unit.ID, func(u *Unit) error { return u.SetCandidates(candidates) })
		}
	})
	if err != nil {
		s.logger.Error("Failed to start fetch loop", zap.Error(err), zap.String("batchID", b.ID.String()))
	}
}

func (s *generationService) startPolling(ctx context.Context, b *Batch, unitID, userID uuid.UUID, refNo, statusURL string) error {
	taskID, err := s.taskMgr.Submit(ctx, userID, func(taskCtx context.Context) (interface{}, error) {
		videoURL, pollErr := s.poller.Poll(taskCtx, statusURL, refNo, userID)
		if pollErr != nil {
			if !errors.Is(pollErr, context.Canceled) {
				generationsFailed.Inc()
				s.failUnit(taskCtx, b, unitID, userID, pollErr.Error())
			}
			return nil, pollErr
		}
		s.completeUnit(taskCtx, b, unitID, userID, refNo, videoURL)
		return videoURL, nil
	})
	if err != nil {
		return err
	}
	s.pollMu.Lock()
	s.pollTasks[unitID] = taskID
	s.pollMu.Unlock()
	return nil
}

func (s *generationService) takePollTask(unitID uuid.UUID) (uuid.UUID, bool) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	taskID, ok := s.pollTasks[unitID]
	if ok {
		delete(s.pollTasks, unitID)
	}
	return taskID, ok
}

func (s *generationService) completeUnit(ctx context.Context, b *Batch, unitID, userID uuid.UUID, refNo, videoURL string) {
	var elapsed time.Duration
	err := b.WithUnit(unitID, func(u *Unit) error {
		if u.RefNo == "" {
			u.RefNo = refNo
		}
		if err := u.MarkCompleted(videoURL); err != nil {
			return err
		}
		elapsed = u.Elapsed(time.Now())
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to mark unit completed", zap.Error(err), zap.String("unitID", unitID.String()))
		return
	}
	generationsCompleted.Inc()
	generationDuration.Observe(elapsed.Seconds())
	s.takePollTask(unitID)

	// Готовое видео попадает в галерею сгенерированных файлов
	file := &models.UserFile{
		UserID:   userID,
		FilePath: videoURL,
		FileType: models.FileTypeVideo,
		Folder:   models.FolderGenerated,
	}
	if err := s.gallery.AddFile(ctx, file); err != nil {
		s.logger.Error("Generated video not saved to gallery", zap.Error(err), zap.String("refNo", refNo))
	}

	msg := fmt.Sprintf("Your video %s is ready (took %s)", refNo, FormatElapsed(elapsed))
	if err := s.notifications.Notify(ctx, userID, msg); err != nil {
		s.logger.Warn("Completion notification failed", zap.Error(err), zap.String("userID", userID.String()))
	}
	s.logger.Info("Generation finished",
		zap.String("refNo", refNo),
		zap.String("userID", userID.String()),
		zap.String("elapsed", FormatElapsed(elapsed)),
	)
}

func (s *generationService) failUnit(ctx context.Context, b *Batch, unitID, userID uuid.UUID, reason string) {
	_ = b.WithUnit(unitID, func(u *Unit) error { u.MarkFailed(reason); return nil })
	s.takePollTask(unitID)
	if err := s.notifications.Notify(ctx, userID, "Video generation failed: "+reason); err != nil {
		s.logger.Warn("Failure notification failed", zap.Error(err), zap.String("userID", userID.String()))
	}
}

func (s *generationService) withUnit(userID, batchID, unitID uuid.UUID, fn func(*Unit) error) error {
	b, err := s.registry.Get(userID, batchID)
	if err != nil {
		return err
	}
	return b.WithUnit(unitID, fn)
}

// FormatElapsed renders a duration as mm:ss for progress display.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// productCodeFromURL derives the product code from the last path segment of
// the product page URL.
func productCodeFromURL(productURL string) string {
	if productURL == "" {
		return ""
	}
	parsed, err := url.Parse(productURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
