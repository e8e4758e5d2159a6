package jobs

import (
	"context"
	"testing"
	"time"

	"media-toolkit/internal/domain"
	"media-toolkit/internal/tools"
)

// fakeAdapter routes every adapter call through one injectable func.
type fakeAdapter struct {
	call func(ctx context.Context, kind domain.JobKind, in, out string, extra any) (tools.Result, error)
}

func (f *fakeAdapter) do(ctx context.Context, kind domain.JobKind, in, out string, extra any) (tools.Result, error) {
	if f.call == nil {
		return tools.Result{OutputPath: out}, nil
	}
	return f.call(ctx, kind, in, out, extra)
}

func (f *fakeAdapter) CompressVideo(ctx context.Context, in, out string, target int64) (tools.Result, error) {
	return f.do(ctx, domain.JobKindCompressVideo, in, out, target)
}

func (f *fakeAdapter) ConvertVideo(ctx context.Context, in, out string) (tools.Result, error) {
	return f.do(ctx, domain.JobKindConvertVideoFormat, in, out, nil)
}

func (f *fakeAdapter) ExportGIF(ctx context.Context, in, out string) (tools.Result, error) {
	return f.do(ctx, domain.JobKindConvertVideoToGIF, in, out, nil)
}

func (f *fakeAdapter) EnhancePDF(ctx context.Context, in, out string) (tools.Result, error) {
	return f.do(ctx, domain.JobKindEnhancePDF, in, out, nil)
}

func (f *fakeAdapter) ConvertAudio(ctx context.Context, in, out string, format domain.AudioFormat) (tools.Result, error) {
	return f.do(ctx, domain.JobKindConvertAudioFormat, in, out, format)
}

// queueDispatcher collects closures for the test goroutine to run,
// standing in for the UI loop.
type queueDispatcher struct {
	queue chan func()
}

func newQueueDispatcher() *queueDispatcher {
	return &queueDispatcher{queue: make(chan func(), 64)}
}

func (d *queueDispatcher) Dispatch(fn func()) {
	d.queue <- fn
}

// runUntil drains dispatched closures until cond holds or the deadline passes.
func (d *queueDispatcher) runUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case fn := <-d.queue:
			fn()
		case <-deadline:
			t.Fatal("timed out waiting for job completion")
		}
	}
}

// stubResolver maps requests to fixed outputs.
type stubResolver struct {
	out string
	err error
}

func (s stubResolver) Resolve(req domain.JobRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.out != "" {
		return s.out, nil
	}
	return req.OutputPathStem, nil
}
