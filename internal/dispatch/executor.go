package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"sambot/internal/domain"
	"sambot/internal/metrics"
)

// TaskStatus represents the lifecycle of a background task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// BackgroundTask is the executor's record of one submitted task. A failed
// task records only the kind of error and the upstream HTTP status; the
// full error, which may carry private URLs and response bodies, goes to
// the logs.
type BackgroundTask struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     TaskStatus `json:"status"`
	Stage      string     `json:"stage,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	StatusCode int        `json:"status_code,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  time.Time  `json:"started_at,omitzero"`
	DoneAt     time.Time  `json:"done_at,omitzero"`
}

// Error kinds recorded for failures outside the domain taxonomy.
const (
	KindPanic = "panic"
	KindTask  = "task"
)

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// failureOf classifies err for the task record.
func failureOf(err error) (kind string, status int) {
	var pe *panicError
	if errors.As(err, &pe) {
		return KindPanic, 0
	}
	kind = domain.ErrorKind(err)
	if kind == "" {
		kind = KindTask
	}
	var (
		fetchErr *domain.FetchError
		relayErr *domain.RelaySubmissionError
	)
	switch {
	case errors.As(err, &fetchErr):
		status = fetchErr.StatusCode
	case errors.As(err, &relayErr):
		status = relayErr.StatusCode
	}
	return kind, status
}

// TaskFunc is the body of a background task. report records the stage the
// task has reached.
type TaskFunc func(ctx context.Context, report func(stage string)) error

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// MaxConcurrent bounds the number of tasks running at once. Zero means
	// unbounded.
	MaxConcurrent int
	Logger        *slog.Logger
}

// Executor runs fire-and-forget tasks in their own goroutines. Submit never
// blocks; when a bound is configured, excess tasks wait in pending state.
type Executor struct {
	mu     sync.RWMutex
	tasks  map[string]*BackgroundTask
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewExecutor creates a new background task executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		tasks:  make(map[string]*BackgroundTask),
		ctx:    ctx,
		cancel: cancel,
		logger: cfg.Logger,
	}
	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return e
}

type taskIDKey struct{}

// TaskID returns the id of the task running on ctx, if any.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// Submit schedules fn and returns its task id. The task runs on the
// executor's context, not the caller's, so it outlives the request that
// triggered it. A panic inside fn is recovered and recorded as a failure.
func (e *Executor) Submit(name string, fn TaskFunc) string {
	id := uuid.NewString()
	task := &BackgroundTask{
		ID:        id,
		Name:      name,
		Status:    TaskPending,
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.tasks[id] = task
	e.mu.Unlock()

	e.logger.Debug("background task submitted", "task_id", id, "name", name)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx := context.WithValue(e.ctx, taskIDKey{}, id)

		if e.sem != nil {
			if err := e.sem.Acquire(ctx, 1); err != nil {
				e.finish(task, fmt.Errorf("not started: %w", err))
				return
			}
			defer e.sem.Release(1)
		}

		e.mu.Lock()
		task.Status = TaskRunning
		task.StartedAt = time.Now()
		e.mu.Unlock()

		metrics.TasksActive.Inc()
		defer metrics.TasksActive.Dec()

		e.finish(task, e.run(ctx, task, fn))
	}()

	return id
}

func (e *Executor) run(ctx context.Context, task *BackgroundTask, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("background task panicked", "task_id", task.ID, "name", task.Name,
				"panic", r, "stack", string(debug.Stack()))
			err = &panicError{value: r}
		}
	}()
	report := func(stage string) {
		e.mu.Lock()
		task.Stage = stage
		e.mu.Unlock()
	}
	return fn(ctx, report)
}

func (e *Executor) finish(task *BackgroundTask, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task.DoneAt = time.Now()
	if err != nil {
		task.Status = TaskFailed
		task.ErrorKind, task.StatusCode = failureOf(err)
		metrics.TasksFailed.Inc()
		e.logger.Debug("background task failed", "task_id", task.ID, "name", task.Name, "err", err)
		return
	}
	task.Status = TaskComplete
	metrics.TasksCompleted.Inc()
	e.logger.Debug("background task completed", "task_id", task.ID, "name", task.Name,
		"duration", task.DoneAt.Sub(task.StartedAt))
}

// Get returns a copy of the task record.
func (e *Executor) Get(id string) (*BackgroundTask, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	task, ok := e.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *task
	return &cp, true
}

// List returns all tasks, oldest first.
func (e *Executor) List() []BackgroundTask {
	return e.filter(func(*BackgroundTask) bool { return true })
}

// ListActive returns tasks that are still pending or running.
func (e *Executor) ListActive() []BackgroundTask {
	return e.filter(func(t *BackgroundTask) bool {
		return t.Status == TaskPending || t.Status == TaskRunning
	})
}

func (e *Executor) filter(keep func(*BackgroundTask) bool) []BackgroundTask {
	e.mu.RLock()
	result := make([]BackgroundTask, 0, len(e.tasks))
	for _, t := range e.tasks {
		if keep(t) {
			result = append(result, *t)
		}
	}
	e.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// Clean removes finished tasks older than maxAge and returns how many were
// removed.
func (e *Executor) Clean(maxAge time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, t := range e.tasks {
		if (t.Status == TaskComplete || t.Status == TaskFailed) && t.DoneAt.Before(cutoff) {
			delete(e.tasks, id)
			removed++
		}
	}
	return removed
}

// Wait blocks until every submitted task has finished or ctx is done. On
// timeout the executor's context is cancelled so in-flight network calls
// abort, and ctx's error is returned.
func (e *Executor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.Warn("background tasks still running at shutdown", "active", len(e.ListActive()))
		return ctx.Err()
	}
}
