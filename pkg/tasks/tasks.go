// Package tasks runs cancellable background jobs (video generation polling)
// and tracks their lifecycle in memory.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Status представляет статус фоновой задачи.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Func is the body of a background task. The context is cancelled when the
// task is cancelled or the manager shuts down.
type Func func(ctx context.Context) (interface{}, error)

// Task is the tracked state of one background job.
type Task struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Status    Status
	Message   string
	Result    interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
	cancel    context.CancelFunc
}

// Manager управляет фоновыми задачами.
type Manager struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*Task
	maxTasks int
	wg       sync.WaitGroup
	closed   bool
}

// ErrTooManyTasks is returned when the active task limit is reached.
var ErrTooManyTasks = errors.New("too many active tasks")

// ErrTaskNotFound is returned for unknown task IDs.
var ErrTaskNotFound = errors.New("task not found")

// NewManager creates a task manager that allows up to maxTasks concurrent
// active tasks (defaults to 10 when maxTasks <= 0).
func NewManager(maxTasks int) *Manager {
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &Manager{
		tasks:    make(map[uuid.UUID]*Task),
		maxTasks: maxTasks,
	}
}

// Submit registers and starts a new task owned by ownerID. The task runs on
// an independent context so it survives the submitting HTTP request.
func (m *Manager) Submit(ctx context.Context, ownerID uuid.UUID, fn Func) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return uuid.Nil, errors.New("task manager is shut down")
	}

	active := 0
	for _, t := range m.tasks {
		if t.Status == StatusPending || t.Status == StatusRunning {
			active++
		}
	}
	if active >= m.maxTasks {
		return uuid.Nil, ErrTooManyTasks
	}

	// Задача живет на собственном контексте, но наследует логгер запроса
	taskCtx, cancel := context.WithCancel(log.Ctx(ctx).WithContext(context.Background()))

	task := &Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		cancel:    cancel,
	}
	m.tasks[task.ID] = task

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.run(taskCtx, task, fn)
	}()

	return task.ID, nil
}

func (m *Manager) run(ctx context.Context, task *Task, fn Func) {
	m.setStatus(ctx, task, StatusRunning, "", nil)

	result, err := fn(ctx)

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			m.setStatus(ctx, task, StatusCancelled, "task cancelled", nil)
		} else {
			m.setStatus(ctx, task, StatusFailed, fmt.Sprintf("context error: %v", ctx.Err()), nil)
		}
		return
	}

	if err != nil {
		m.setStatus(ctx, task, StatusFailed, err.Error(), nil)
		return
	}
	m.setStatus(ctx, task, StatusCompleted, "", result)
}

func (m *Manager) setStatus(ctx context.Context, task *Task, status Status, message string, result interface{}) {
	m.mu.Lock()
	task.Status = status
	task.Message = message
	if result != nil {
		task.Result = result
	}
	task.UpdatedAt = time.Now()
	m.mu.Unlock()

	log.Ctx(ctx).Info().
		Str("taskID", task.ID.String()).
		Str("status", string(status)).
		Str("message", message).
		Msg("Task status updated")
}

// Get returns the task by ID.
func (m *Manager) Get(taskID uuid.UUID) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Cancel cancels a pending or running task. Only the owner may cancel it.
func (m *Manager) Cancel(taskID, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return ErrTaskNotFound
	}
	if task.Status != StatusPending && task.Status != StatusRunning {
		return fmt.Errorf("cannot cancel task in status %s", task.Status)
	}
	task.cancel()
	task.Status = StatusCancelled
	task.Message = "cancelled by user"
	task.UpdatedAt = time.Now()
	return nil
}

// Cleanup drops finished tasks older than age.
func (m *Manager) Cleanup(age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, task := range m.tasks {
		switch task.Status {
		case StatusCompleted, StatusFailed, StatusCancelled:
			if now.Sub(task.UpdatedAt) > age {
				delete(m.tasks, id)
			}
		}
	}
}

// Shutdown cancels all active tasks and waits for them to finish, bounded by
// the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, task := range m.tasks {
		if task.Status == StatusPending || task.Status == StatusRunning {
			task.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for tasks to finish")
	}
}
