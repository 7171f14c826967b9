package generation

import (
	"sort"
	"sync"
	"time"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
)

// MaxBatchUnits caps how many products one batch can hold.
const MaxBatchUnits = 50

// Batch is one working session of batch units. Batches live in memory only;
// a server restart discards unfinished sessions.
type Batch struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	mu    sync.Mutex
	units []*Unit
}

// NewBatch creates an empty batch owned by userID.
func NewBatch(userID uuid.UUID) *Batch {
	return &Batch{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

// AddUnit appends a unit to the batch.
func (b *Batch) AddUnit(unit *Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.units) >= MaxBatchUnits {
		return models.ErrInvalidInput
	}
	b.units = append(b.units, unit)
	return nil
}

// Units returns a snapshot of the batch units in creation order.
func (b *Batch) Units() []*Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Unit, len(b.units))
	copy(out, b.units)
	return out
}

// WithUnit runs fn on the unit with the given ID under the batch lock.
func (b *Batch) WithUnit(unitID uuid.UUID, fn func(*Unit) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.units {
		if u.ID == unitID {
			return fn(u)
		}
	}
	return models.ErrUnitNotFound
}

// NextPendingUnit returns the next unit awaiting a candidate fetch and marks
// it as fetching. Загрузка изображений строго последовательная: следующий
// юнит не выдается, пока предыдущий грузится или его выбор не подтвержден.
func (b *Batch) NextPendingUnit() (*Unit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.units {
		switch u.State {
		case StateFetching, StateSelecting:
			return nil, false
		case StatePending:
			u.State = StateFetching
			return u, true
		}
	}
	return nil, false
}

// UnitsSnapshot returns deep copies of the units in creation order, safe to
// read and serialize while background tasks keep mutating the originals.
func (b *Batch) UnitsSnapshot() []Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Unit, len(b.units))
	for i, u := range b.units {
		out[i] = u.Snapshot()
	}
	return out
}

// UnitSnapshot returns a deep copy of one unit.
func (b *Batch) UnitSnapshot(unitID uuid.UUID) (Unit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.units {
		if u.ID == unitID {
			return u.Snapshot(), nil
		}
	}
	return Unit{}, models.ErrUnitNotFound
}

// Registry is the in-memory store of active batches.
type Registry struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*Batch
}

// NewRegistry creates an empty batch registry.
func NewRegistry() *Registry {
	return &Registry{batches: make(map[uuid.UUID]*Batch)}
}

// Create registers a new batch for the user.
func (r *Registry) Create(userID uuid.UUID) *Batch {
	b := NewBatch(userID)
	r.mu.Lock()
	r.batches[b.ID] = b
	r.mu.Unlock()
	return b
}

// Get returns the batch if it exists and belongs to userID.
func (r *Registry) Get(userID, batchID uuid.UUID) (*Batch, error) {
	r.mu.RLock()
	b, ok := r.batches[batchID]
	r.mu.RUnlock()
	if !ok || b.UserID != userID {
		return nil, models.ErrBatchNotFound
	}
	return b, nil
}

// Delete removes the batch from the registry.
func (r *Registry) Delete(userID, batchID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || b.UserID != userID {
		return models.ErrBatchNotFound
	}
	delete(r.batches, batchID)
	return nil
}

// ListByUser returns all batches owned by userID, newest first.
func (r *Registry) ListByUser(userID uuid.UUID) []*Batch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Batch
	for _, b := range r.batches {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Prune drops batches older than maxAge and returns how many were removed.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, b := range r.batches {
		if b.CreatedAt.Before(cutoff) {
			delete(r.batches, id)
			removed++
		}
	}
	return removed
}
