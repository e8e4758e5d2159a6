package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-toolkit/internal/domain"
)

// ErrJobAlreadyRunning is returned when a tab already has an active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for an idle tab.
var ErrNoRunningJob = errors.New("no running job")

// Handle tracks the at most one active job owned by a tab and the outcome
// of the last finished one.
type Handle struct {
	mu      sync.RWMutex
	current domain.Job
	cancel  context.CancelFunc
}

// NewHandle creates an idle handle for tab.
func NewHandle(tab domain.Tab) *Handle {
	return &Handle{
		current: domain.Job{
			Tab:    tab,
			Status: domain.JobStatusIdle,
		},
	}
}

// Start moves the handle to running for a new job. The previous outcome is
// cleared so the tab never shows a stale result next to a running job.
func (h *Handle) Start(jobID string, kind domain.JobKind, outputPath string, cancel context.CancelFunc) (domain.Job, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current.Status == domain.JobStatusRunning {
		return h.current, ErrJobAlreadyRunning
	}

	h.current = domain.Job{
		Tab:        h.current.Tab,
		ID:         jobID,
		Kind:       kind,
		Status:     domain.JobStatusRunning,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}
	h.cancel = cancel
	return h.current, nil
}

// Finish records the outcome of jobID and moves the handle to done or
// failed. Outcomes for any other job are ignored.
func (h *Handle) Finish(jobID string, outcome domain.JobOutcome) (domain.Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current.Status != domain.JobStatusRunning || h.current.ID != jobID {
		return h.current, false
	}

	h.current.Status = domain.JobStatusFailed
	if outcome.IsSuccess() {
		h.current.Status = domain.JobStatusDone
	}
	h.current.FinishedAt = time.Now().UTC()
	h.current.LastOutcome = &outcome
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	return h.current, true
}

// Cancel requests cancellation of the running job. The status only changes
// once the job reports its outcome through Finish.
func (h *Handle) Cancel() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current.Status != domain.JobStatusRunning {
		return ErrNoRunningJob
	}
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// Snapshot returns a copy of the handle state.
func (h *Handle) Snapshot() domain.Job {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// IsRunning reports whether a job is active on this handle.
func (h *Handle) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Status == domain.JobStatusRunning
}
