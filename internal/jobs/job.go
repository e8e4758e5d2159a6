package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"media-toolkit/internal/domain"
	"media-toolkit/internal/tools"
)

// Adapter is the external tool surface a job drives. *tools.Toolkit
// satisfies it.
type Adapter interface {
	CompressVideo(ctx context.Context, inputPath, outputPath string, targetSizeBytes int64) (tools.Result, error)
	ConvertVideo(ctx context.Context, inputPath, outputPath string) (tools.Result, error)
	ExportGIF(ctx context.Context, inputPath, outputPath string) (tools.Result, error)
	EnhancePDF(ctx context.Context, inputPath, outputPath string) (tools.Result, error)
	ConvertAudio(ctx context.Context, inputPath, outputPath string, format domain.AudioFormat) (tools.Result, error)
}

type jobState int

const (
	jobCreated jobState = iota
	jobRunning
	jobSucceeded
	jobFailed
)

// Job binds one accepted request to its resolved output and runs it once.
type Job struct {
	ID         string
	Request    domain.JobRequest
	OutputPath string

	adapter Adapter
	stat    func(name string) (os.FileInfo, error)

	mu    sync.Mutex
	state jobState
}

// NewJob creates a job in created state.
func NewJob(id string, req domain.JobRequest, outputPath string, adapter Adapter) *Job {
	return &Job{
		ID:         id,
		Request:    req,
		OutputPath: outputPath,
		adapter:    adapter,
		stat:       os.Stat,
	}
}

// Execute runs the request through the adapter and always returns exactly
// one outcome. Adapter errors and panics become failures.
func (j *Job) Execute(ctx context.Context) (outcome domain.JobOutcome) {
	j.mu.Lock()
	if j.state != jobCreated {
		j.mu.Unlock()
		return domain.Failure("job already executed")
	}
	j.state = jobRunning
	j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Failure(fmt.Sprintf("internal error: %v", r))
		}
		j.mu.Lock()
		if outcome.IsSuccess() {
			j.state = jobSucceeded
		} else {
			j.state = jobFailed
		}
		j.mu.Unlock()
	}()

	// The input size is taken before encoding so the reported original
	// reflects what the user submitted.
	var inputBytes int64
	if j.Request.Kind == domain.JobKindCompressVideo {
		info, err := j.stat(j.Request.InputPath)
		if err != nil {
			return failureFor(ctx, fmt.Errorf("cannot read input size: %w", err))
		}
		inputBytes = info.Size()
	}

	result, err := j.dispatch(ctx)
	if err != nil {
		return failureFor(ctx, err)
	}

	metrics := result.Metrics
	if j.Request.Kind == domain.JobKindCompressVideo {
		metrics, err = j.sizeMetrics(inputBytes, result.Metrics)
		if err != nil {
			return failureFor(ctx, err)
		}
	}

	outputPath := result.OutputPath
	if outputPath == "" {
		outputPath = j.OutputPath
	}
	outcome = domain.Success(outputPath, metrics)
	outcome.Logs = result.Logs
	return outcome
}

// dispatch routes the request kind to the matching adapter call.
func (j *Job) dispatch(ctx context.Context) (tools.Result, error) {
	in, out := j.Request.InputPath, j.OutputPath

	switch j.Request.Kind {
	case domain.JobKindCompressVideo:
		return j.adapter.CompressVideo(ctx, in, out, targetSize(j.Request))
	case domain.JobKindConvertVideoFormat:
		return j.adapter.ConvertVideo(ctx, in, out)
	case domain.JobKindConvertVideoToGIF:
		return j.adapter.ExportGIF(ctx, in, out)
	case domain.JobKindEnhancePDF:
		return j.adapter.EnhancePDF(ctx, in, out)
	case domain.JobKindConvertAudioFormat:
		format := domain.AudioFormatMP3
		if raw := j.Request.Param(domain.ParamAudioFormat); raw != "" {
			parsed, ok := domain.ParseAudioFormat(raw)
			if !ok {
				return tools.Result{}, fmt.Errorf("unsupported audio format: %q", raw)
			}
			format = parsed
		}
		return j.adapter.ConvertAudio(ctx, in, out, format)
	default:
		return tools.Result{}, fmt.Errorf("unknown job kind: %q", j.Request.Kind)
	}
}

// sizeMetrics adds input and output sizes to the adapter's metrics.
func (j *Job) sizeMetrics(inputBytes int64, adapterMetrics map[string]float64) (map[string]float64, error) {
	outInfo, err := j.stat(j.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read output size: %w", err)
	}

	metrics := make(map[string]float64, len(adapterMetrics)+2)
	for k, v := range adapterMetrics {
		metrics[k] = v
	}
	metrics[domain.MetricOriginalBytes] = float64(inputBytes)
	metrics[domain.MetricResultBytes] = float64(outInfo.Size())
	return metrics, nil
}

// targetSize reads the requested compression target, falling back to 16 MiB.
func targetSize(req domain.JobRequest) int64 {
	size, err := strconv.ParseInt(req.Param(domain.ParamTargetSizeBytes), 10, 64)
	if err != nil || size <= 0 {
		return domain.DefaultTargetSizeBytes
	}
	return size
}

// failureFor maps an error to a failure outcome, naming cancellation and
// timeouts explicitly and carrying the failing command's log.
func failureFor(ctx context.Context, err error) domain.JobOutcome {
	var outcome domain.JobOutcome
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = domain.Failure(timeoutMessage(ctx))
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		outcome = domain.Failure("job cancelled")
	default:
		outcome = domain.Failure(err.Error())
	}

	var toolErr *tools.ToolError
	if errors.As(err, &toolErr) && toolErr.CommandLog.Command != "" {
		outcome.Logs = []domain.CommandLog{toolErr.CommandLog}
	}
	return outcome
}

type timeoutKey struct{}

// withTimeout bounds ctx by d and remembers d for the failure message.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.WithValue(ctx, timeoutKey{}, d), d)
}

func timeoutMessage(ctx context.Context) string {
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok {
		return fmt.Sprintf("job timed out after %s", d)
	}
	return "job timed out"
}
