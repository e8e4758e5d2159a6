package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"media-toolkit/internal/domain"
)

// Stage names reported on ToolError.
const (
	StageProbing     = "probing"
	StageEncoding    = "encoding"
	StageExtracting  = "extracting"
	StageRasterizing = "rasterizing"
	StageEnhancing   = "enhancing"
	StageOCR         = "ocr"
	StageAssembling  = "assembling"
	StageFinalizing  = "finalizing"
)

// ToolError is a stage-aware external tool failure with optional command context.
type ToolError struct {
	Stage      string            `json:"stage"`
	Message    string            `json:"message"`
	CommandLog domain.CommandLog `json:"commandLog"`
	Err        error             `json:"-"`
}

// Error formats tool failures for logs and UI.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Result describes what one adapter call produced.
type Result struct {
	OutputPath string
	Metrics    map[string]float64
	Logs       []domain.CommandLog
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec; ctx cancellation kills the child.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// run executes one command and converts failures into a ToolError.
func (t *Toolkit) run(ctx context.Context, stage, failMessage, name string, args ...string) (domain.CommandLog, error) {
	res, runErr := t.runner.Run(ctx, name, args...)
	log := domain.CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if runErr == nil {
		return log, nil
	}

	// A killed child reports "signal: killed"; surface the cancellation instead.
	if ctxErr := ctx.Err(); ctxErr != nil {
		runErr = ctxErr
	}
	return log, &ToolError{
		Stage:      stage,
		Message:    failMessage,
		CommandLog: log,
		Err:        runErr,
	}
}

// cancelled converts a done context into a ToolError for the given stage.
func cancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return &ToolError{Stage: stage, Message: "operation cancelled", Err: err}
	}
	return nil
}
