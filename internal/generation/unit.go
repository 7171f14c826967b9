package generation

import (
	"time"

	"ecom-studio/internal/models"
	"ecom-studio/internal/sources"

	"github.com/google/uuid"
)

// UnitState is the lifecycle state of one batch unit.
type UnitState string

const (
	// StatePending - юнит ждет своей очереди на загрузку изображений.
	StatePending UnitState = "pending"
	// StateFetching - изображения товара загружаются.
	StateFetching UnitState = "fetching"
	// StateSelecting - candidates are available, the user is picking images.
	StateSelecting UnitState = "selecting"
	// StateConfiguring - selection confirmed, per-image settings are editable.
	StateConfiguring UnitState = "configuring"
	// StateSubmitting - the generation request is being sent.
	StateSubmitting UnitState = "submitting"
	// StateProcessing - the backend accepted the job, polling is in progress.
	StateProcessing UnitState = "processing"
	StateCompleted  UnitState = "completed"
	StateFailed     UnitState = "failed"
)

// MaxSelectedImages caps the selection size per unit.
const MaxSelectedImages = 4

// SelectedImage pairs a chosen candidate URL with its generation settings.
// Порядок выбора сохраняется.
type SelectedImage struct {
	URL      string        `json:"url"`
	Settings ImageSettings `json:"settings"`
}

// Unit is one product inside a batch: its candidates, selection, settings and
// generation progress. Units are not safe for concurrent use on their own;
// the owning Batch serializes access.
type Unit struct {
	ID          uuid.UUID                `json:"id"`
	ProductURL  string                   `json:"product_url,omitempty"`
	ProductCode string                   `json:"product_code,omitempty"`
	State       UnitState                `json:"state"`
	Candidates  []sources.ImageCandidate `json:"candidates,omitempty"`
	Selected    []SelectedImage          `json:"selected,omitempty"`

	RefNo         string     `json:"ref_no,omitempty"`
	StatusURL     string     `json:"-"`
	VideoURL      string     `json:"video_url,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewUnit creates a pending unit for a product URL.
func NewUnit(productURL string) *Unit {
	return &Unit{
		ID:         uuid.New(),
		ProductURL: productURL,
		State:      StatePending,
	}
}

// NewUnitWithCandidates creates a unit whose candidates are already known
// (uploads and library picks skip the fetch step).
func NewUnitWithCandidates(candidates []sources.ImageCandidate) *Unit {
	return &Unit{
		ID:         uuid.New(),
		State:      StateSelecting,
		Candidates: candidates,
	}
}

// BeginFetch marks the unit as loading its candidates.
func (u *Unit) BeginFetch() error {
	if u.State != StatePending {
		return models.ErrInvalidTransition
	}
	u.State = StateFetching
	return nil
}

// SetCandidates stores fetched candidates and opens the selection step.
func (u *Unit) SetCandidates(candidates []sources.ImageCandidate) error {
	if u.State != StateFetching {
		return models.ErrInvalidTransition
	}
	if len(candidates) == 0 {
		u.State = StateFailed
		u.FailureReason = models.ErrNoImagesFound.Error()
		return models.ErrNoImagesFound
	}
	u.Candidates = candidates
	u.State = StateSelecting
	return nil
}

// FailFetch marks a candidate fetch as failed.
func (u *Unit) FailFetch(reason string) {
	u.State = StateFailed
	u.FailureReason = reason
}

// SelectImage adds a candidate to the selection, preserving pick order.
func (u *Unit) SelectImage(url string) error {
	if u.State != StateSelecting && u.State != StateConfiguring {
		return models.ErrInvalidTransition
	}
	if len(u.Selected) >= MaxSelectedImages {
		return models.ErrSelectionFull
	}
	for _, sel := range u.Selected {
		if sel.URL == url {
			return models.ErrDuplicateImage
		}
	}
	if !u.isCandidate(url) {
		return models.ErrImageNotCandidate
	}
	u.Selected = append(u.Selected, SelectedImage{URL: url, Settings: DefaultImageSettings()})
	return nil
}

// DeselectImage removes a candidate from the selection.
func (u *Unit) DeselectImage(url string) error {
	if u.State != StateSelecting && u.State != StateConfiguring {
		return models.ErrInvalidTransition
	}
	for i, sel := range u.Selected {
		if sel.URL == url {
			u.Selected = append(u.Selected[:i], u.Selected[i+1:]...)
			return nil
		}
	}
	return models.ErrImageNotCandidate
}

// ConfirmSelection locks the selection and moves to settings editing.
func (u *Unit) ConfirmSelection() error {
	if u.State != StateSelecting {
		return models.ErrInvalidTransition
	}
	if len(u.Selected) == 0 {
		return models.ErrSelectionEmpty
	}
	u.State = StateConfiguring
	return nil
}

// UpdateSettings replaces the settings of the selected image at slot.
func (u *Unit) UpdateSettings(slot int, settings ImageSettings) error {
	if u.State != StateConfiguring {
		return models.ErrInvalidTransition
	}
	if slot < 0 || slot >= len(u.Selected) {
		return models.ErrInvalidSlot
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	u.Selected[slot].Settings = settings
	return nil
}

// BeginSubmission moves the unit into the submitting state.
func (u *Unit) BeginSubmission() error {
	switch u.State {
	case StateConfiguring:
		u.State = StateSubmitting
		return nil
	case StateSubmitting, StateProcessing:
		return models.ErrGenerationInProgress
	default:
		return models.ErrInvalidTransition
	}
}

// MarkProcessing records the accepted job and starts the polling phase.
func (u *Unit) MarkProcessing(refNo, statusURL string) error {
	if u.State != StateSubmitting {
		return models.ErrInvalidTransition
	}
	now := time.Now()
	u.RefNo = refNo
	u.StatusURL = statusURL
	u.SubmittedAt = &now
	u.State = StateProcessing
	return nil
}

// MarkCompleted stores the result video URL.
func (u *Unit) MarkCompleted(videoURL string) error {
	if u.State != StateSubmitting && u.State != StateProcessing {
		return models.ErrInvalidTransition
	}
	now := time.Now()
	u.VideoURL = videoURL
	u.CompletedAt = &now
	u.FailureReason = ""
	u.State = StateCompleted
	return nil
}

// MarkFailed records a terminal generation failure.
func (u *Unit) MarkFailed(reason string) {
	now := time.Now()
	u.FailureReason = reason
	u.CompletedAt = &now
	u.State = StateFailed
}

// EditAgain returns a finished unit to the settings step. Выбранные
// изображения и их настройки сохраняются как есть.
func (u *Unit) EditAgain() error {
	if u.State != StateCompleted && u.State != StateFailed {
		return models.ErrInvalidTransition
	}
	if len(u.Selected) == 0 {
		// Юнит упал еще до выбора изображений, редактировать нечего
		return models.ErrInvalidTransition
	}
	u.State = StateConfiguring
	u.RefNo = ""
	u.StatusURL = ""
	u.VideoURL = ""
	u.FailureReason = ""
	u.SubmittedAt = nil
	u.CompletedAt = nil
	return nil
}

// Elapsed returns how long the unit has been (or was) generating.
func (u *Unit) Elapsed(now time.Time) time.Duration {
	if u.SubmittedAt == nil {
		return 0
	}
	if u.CompletedAt != nil {
		return u.CompletedAt.Sub(*u.SubmittedAt)
	}
	return now.Sub(*u.SubmittedAt)
}

// Snapshot returns a deep copy of the unit. Slices and timestamps are copied
// so the snapshot stays stable after the original keeps changing.
func (u *Unit) Snapshot() Unit {
	cp := *u
	cp.Candidates = append([]sources.ImageCandidate(nil), u.Candidates...)
	cp.Selected = append([]SelectedImage(nil), u.Selected...)
	if u.SubmittedAt != nil {
		at := *u.SubmittedAt
		cp.SubmittedAt = &at
	}
	if u.CompletedAt != nil {
		at := *u.CompletedAt
		cp.CompletedAt = &at
	}
	return cp
}

func (u *Unit) isCandidate(url string) bool {
	for _, c := range u.Candidates {
		if c.URL == url {
			return true
		}
	}
	return false
}
