package jobs

import (
	"context"
	"testing"

	"media-toolkit/internal/domain"
)

// TestHandleLifecycle verifies normal progression to done state.
func TestHandleLifecycle(t *testing.T) {
	h := NewHandle(domain.TabVideo)
	if h.IsRunning() {
		t.Fatal("new handle should be idle")
	}

	job, err := h.Start("job-1", domain.JobKindCompressVideo, "/out/a.mp4", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !h.IsRunning() || job.Status != domain.JobStatusRunning || job.Tab != domain.TabVideo {
		t.Fatalf("unexpected running snapshot: %+v", job)
	}

	done, ok := h.Finish("job-1", domain.Success("/out/a.mp4", nil))
	if !ok {
		t.Fatal("finish should apply to the running job")
	}
	if done.Status != domain.JobStatusDone || done.LastOutcome == nil || done.LastOutcome.OutputPath != "/out/a.mp4" {
		t.Fatalf("unexpected done snapshot: %+v", done)
	}
}

// TestHandleRejectsSecondStart checks the busy rule leaves the handle unchanged.
func TestHandleRejectsSecondStart(t *testing.T) {
	h := NewHandle(domain.TabPDF)
	if _, err := h.Start("job-1", domain.JobKindEnhancePDF, "/out/a.pdf", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	before := h.Snapshot()
	if _, err := h.Start("job-2", domain.JobKindEnhancePDF, "/out/b.pdf", nil); err != ErrJobAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}
	if after := h.Snapshot(); after.ID != before.ID || after.OutputPath != before.OutputPath {
		t.Fatalf("handle changed: before %+v after %+v", before, after)
	}
}

// TestHandleIgnoresStaleFinish checks outcomes of other jobs are dropped.
func TestHandleIgnoresStaleFinish(t *testing.T) {
	h := NewHandle(domain.TabAudio)
	if _, err := h.Start("job-1", domain.JobKindConvertAudioFormat, "/out/a.ogg", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, ok := h.Finish("job-0", domain.Failure("old")); ok {
		t.Fatal("stale outcome should be ignored")
	}
	if !h.IsRunning() {
		t.Fatal("handle should still be running")
	}
}

// TestHandleCancel verifies cancel behavior and repeated cancel handling.
func TestHandleCancel(t *testing.T) {
	h := NewHandle(domain.TabVideo)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := h.Start("job-1", domain.JobKindConvertVideoFormat, "/out/a.mp4", cancel); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := h.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected job context to be cancelled")
	}
	if !h.IsRunning() {
		t.Fatal("status changes only when the outcome arrives")
	}

	h.Finish("job-1", domain.Failure("job cancelled"))
	if err := h.Cancel(); err != ErrNoRunningJob {
		t.Fatalf("cancel after finish error = %v, want %v", err, ErrNoRunningJob)
	}
}

// TestHandleStartClearsPreviousOutcome checks a new job hides the old result.
func TestHandleStartClearsPreviousOutcome(t *testing.T) {
	h := NewHandle(domain.TabVideo)
	_, _ = h.Start("job-1", domain.JobKindCompressVideo, "/out/a.mp4", nil)
	h.Finish("job-1", domain.Failure("boom"))

	job, err := h.Start("job-2", domain.JobKindCompressVideo, "/out/a.mp4", nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if job.LastOutcome != nil {
		t.Fatalf("last outcome should be cleared, got %+v", job.LastOutcome)
	}
}
