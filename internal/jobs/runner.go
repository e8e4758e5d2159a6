package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-toolkit/internal/domain"
)

// ErrUnknownTab is returned for a tab the runner does not own.
var ErrUnknownTab = errors.New("unknown tab")

// ErrUnknownKind is returned for a request naming no known operation.
var ErrUnknownKind = errors.New("unknown job kind")

// ErrKindTabMismatch is returned when a request is submitted on a tab that
// does not own its kind.
var ErrKindTabMismatch = errors.New("job kind does not belong to tab")

// Dispatcher runs closures on the UI loop. Dispatch must not block on the
// closure itself.
type Dispatcher interface {
	Dispatch(fn func())
}

// OutputResolver turns a request into its destination path.
// *paths.Resolver satisfies it.
type OutputResolver interface {
	Resolve(req domain.JobRequest) (string, error)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Adapter    Adapter
	Resolver   OutputResolver
	Dispatcher Dispatcher
	Events     *EventBus
	Logger     zerolog.Logger
	Timeout    time.Duration
	NewID      func() string
}

// Runner owns one Handle per tab and runs accepted jobs on their own
// goroutines, marshalling every completion back onto the UI loop.
type Runner struct {
	adapter    Adapter
	resolver   OutputResolver
	dispatcher Dispatcher
	events     *EventBus
	logger     zerolog.Logger
	newID      func() string
	handles    map[domain.Tab]*Handle

	mu        sync.RWMutex
	timeout   time.Duration
	observers []func(domain.Job)

	wg sync.WaitGroup
}

// NewRunner creates a runner with an idle handle for every tab.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		adapter:    cfg.Adapter,
		resolver:   cfg.Resolver,
		dispatcher: cfg.Dispatcher,
		events:     cfg.Events,
		logger:     cfg.Logger,
		newID:      cfg.NewID,
		timeout:    cfg.Timeout,
		handles:    make(map[domain.Tab]*Handle, len(domain.Tabs)),
	}
	if r.events == nil {
		r.events = NewEventBus(0)
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	for _, tab := range domain.Tabs {
		r.handles[tab] = NewHandle(tab)
	}
	return r
}

// SetTimeout changes the limit applied to jobs submitted afterwards.
func (r *Runner) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// OnChange registers an observer called on the UI loop after every handle
// transition.
func (r *Runner) OnChange(fn func(domain.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Events exposes the job event history.
func (r *Runner) Events() *EventBus {
	return r.events
}

// Submit validates req, starts it on tab and returns the running snapshot.
// It must be called on the UI loop. A rejected request leaves the handle
// untouched. onComplete runs on the UI loop exactly once per accepted job,
// before the handle leaves running.
func (r *Runner) Submit(tab domain.Tab, req domain.JobRequest, onComplete func(domain.JobOutcome)) (domain.Job, error) {
	handle, ok := r.handles[tab]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	if !req.Kind.Valid() {
		return handle.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if req.Kind.Tab() != tab {
		return handle.Snapshot(), fmt.Errorf("%w: %s on %s", ErrKindTabMismatch, req.Kind, tab)
	}
	if handle.IsRunning() {
		r.logger.Warn().Str("tab", string(tab)).Str("kind", string(req.Kind)).Msg("submission rejected, tab busy")
		return handle.Snapshot(), ErrJobAlreadyRunning
	}

	outputPath, err := r.resolver.Resolve(req)
	if err != nil {
		r.logger.Warn().Err(err).Str("tab", string(tab)).Str("kind", string(req.Kind)).Msg("submission rejected, invalid path")
		return handle.Snapshot(), err
	}

	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()

	ctx, cancel := withTimeout(context.Background(), timeout)
	job := NewJob(r.newID(), req, outputPath, r.adapter)
	snapshot, err := handle.Start(job.ID, req.Kind, outputPath, cancel)
	if err != nil {
		cancel()
		return snapshot, err
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Str("tab", string(tab)).
		Str("kind", string(req.Kind)).
		Str("input", req.InputPath).
		Str("output", outputPath).
		Msg("job started")
	r.events.Publish(Event{
		JobID:      job.ID,
		Tab:        tab,
		Kind:       req.Kind,
		Type:       EventTypeStatus,
		Status:     snapshot.Status,
		OutputPath: outputPath,
	})
	r.notify(snapshot)

	r.wg.Add(1)
	go r.work(ctx, handle, job, onComplete)
	return snapshot, nil
}

// work executes job and dispatches its outcome on every exit path.
func (r *Runner) work(ctx context.Context, handle *Handle, job *Job, onComplete func(domain.JobOutcome)) {
	defer r.wg.Done()

	outcome := domain.Failure("job ended without an outcome")
	defer func() {
		if rec := recover(); rec != nil {
			outcome = domain.Failure(fmt.Sprintf("internal error: %v", rec))
		}
		r.dispatcher.Dispatch(func() {
			r.complete(handle, job.ID, outcome, onComplete)
		})
	}()

	outcome = job.Execute(ctx)
}

// complete runs on the UI loop: callback first, then the handle transition.
func (r *Runner) complete(handle *Handle, jobID string, outcome domain.JobOutcome, onComplete func(domain.JobOutcome)) {
	r.callback(jobID, onComplete, outcome)

	snapshot, ok := handle.Finish(jobID, outcome)
	if !ok {
		return
	}

	event := r.logger.Info()
	if !outcome.IsSuccess() {
		event = r.logger.Error().Str("error", outcome.Message)
	}
	event.
		Str("job_id", jobID).
		Str("tab", string(snapshot.Tab)).
		Str("kind", string(snapshot.Kind)).
		Str("status", string(snapshot.Status)).
		Dur("elapsed", snapshot.FinishedAt.Sub(snapshot.StartedAt)).
		Msg("job finished")

	for _, e := range outcomeEvents(snapshot, outcome) {
		r.events.Publish(e)
	}
	r.notify(snapshot)
}

func (r *Runner) callback(jobID string, onComplete func(domain.JobOutcome), outcome domain.JobOutcome) {
	if onComplete == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("job_id", jobID).Interface("panic", rec).Msg("completion callback panicked")
		}
	}()
	onComplete(outcome)
}

func (r *Runner) notify(job domain.Job) {
	r.mu.RLock()
	observers := append([]func(domain.Job){}, r.observers...)
	r.mu.RUnlock()

	for _, fn := range observers {
		fn(job)
	}
}

// Cancel requests cancellation of the job running on tab.
func (r *Runner) Cancel(tab domain.Tab) error {
	handle, ok := r.handles[tab]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	if err := handle.Cancel(); err != nil {
		return err
	}
	r.logger.Info().Str("tab", string(tab)).Str("job_id", handle.Snapshot().ID).Msg("job cancellation requested")
	return nil
}

// CancelAll cancels every running job, used on shutdown.
func (r *Runner) CancelAll() {
	for _, tab := range domain.Tabs {
		_ = r.handles[tab].Cancel()
	}
}

// Wait blocks until every worker goroutine has dispatched its outcome.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Snapshot returns the state of one tab's handle.
func (r *Runner) Snapshot(tab domain.Tab) (domain.Job, error) {
	handle, ok := r.handles[tab]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	return handle.Snapshot(), nil
}

// Snapshots returns every tab's state in display order.
func (r *Runner) Snapshots() []domain.Job {
	out := make([]domain.Job, 0, len(domain.Tabs))
	for _, tab := range domain.Tabs {
		out = append(out, r.handles[tab].Snapshot())
	}
	return out
}
