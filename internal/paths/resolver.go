package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-toolkit/internal/domain"
)

// ErrUnsupportedAudioFormat is wrapped when an audio target cannot be mapped to an extension.
var ErrUnsupportedAudioFormat = errors.New("unsupported audio format")

// InvalidPathError reports a request that cannot produce a usable output path.
type InvalidPathError struct {
	Field  string `json:"field"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Error formats path validation failures for dialogs and logs.
func (e *InvalidPathError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Path, e.Reason)
}

// Unwrap exposes the underlying cause.
func (e *InvalidPathError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Resolver derives output paths; stat is injectable for tests.
type Resolver struct {
	stat func(name string) (os.FileInfo, error)
}

// NewResolver builds a resolver backed by the real filesystem.
func NewResolver() *Resolver {
	return &Resolver{stat: os.Stat}
}

// NewResolverForTests builds a resolver with a custom stat function.
func NewResolverForTests(stat func(name string) (os.FileInfo, error)) *Resolver {
	return &Resolver{stat: stat}
}

// ResolveOutputPath resolves with the default filesystem-backed resolver.
func ResolveOutputPath(req domain.JobRequest) (string, error) {
	return NewResolver().Resolve(req)
}

// Resolve validates the request paths and returns the output path with the
// extension the job kind produces. Resolving an already resolved path returns
// it unchanged.
func (r *Resolver) Resolve(req domain.JobRequest) (string, error) {
	stem := strings.TrimSpace(req.OutputPathStem)
	if stem == "" {
		return "", &InvalidPathError{Field: "output path", Reason: "output path is required"}
	}
	if reason := stemNameProblem(stem); reason != "" {
		return "", &InvalidPathError{Field: "output path", Path: stem, Reason: reason}
	}

	input := strings.TrimSpace(req.InputPath)
	if input == "" {
		return "", &InvalidPathError{Field: "input path", Reason: "input file is required"}
	}
	info, err := r.stat(input)
	if err != nil {
		reason := "cannot access input file"
		if errors.Is(err, os.ErrNotExist) {
			reason = "input file does not exist"
		}
		return "", &InvalidPathError{Field: "input path", Path: input, Reason: reason, Err: err}
	}
	if info.IsDir() {
		return "", &InvalidPathError{Field: "input path", Path: input, Reason: "input is a directory"}
	}

	ext, err := targetExtension(req, input)
	if err != nil {
		return "", &InvalidPathError{Field: "output path", Path: stem, Reason: err.Error(), Err: err}
	}

	out := withExtension(stem, ext)
	if samePath(out, input) {
		return "", &InvalidPathError{Field: "output path", Path: out, Reason: "output would overwrite the input file"}
	}
	return out, nil
}

// stemNameProblem rejects stems whose file name cannot carry an extension:
// directories and dot-leading names such as ".notes".
func stemNameProblem(stem string) string {
	if os.IsPathSeparator(stem[len(stem)-1]) || strings.HasSuffix(stem, "/") {
		return "output file name is missing"
	}
	base := filepath.Base(stem)
	if base == "." || base == ".." {
		return "output file name is missing"
	}
	if strings.HasPrefix(base, ".") {
		return "output file name must not start with a dot"
	}
	return ""
}

// targetExtension returns the extension the job kind writes, "" to keep the stem.
func targetExtension(req domain.JobRequest, inputPath string) (string, error) {
	switch req.Kind {
	case domain.JobKindCompressVideo:
		return filepath.Ext(inputPath), nil
	case domain.JobKindConvertVideoFormat:
		return ".mp4", nil
	case domain.JobKindConvertVideoToGIF:
		return ".gif", nil
	case domain.JobKindEnhancePDF:
		return ".pdf", nil
	case domain.JobKindConvertAudioFormat:
		raw := req.Param(domain.ParamAudioFormat)
		if raw == "" {
			return domain.AudioFormatMP3.Extension(), nil
		}
		format, ok := domain.ParseAudioFormat(raw)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedAudioFormat, raw)
		}
		return format.Extension(), nil
	default:
		return "", fmt.Errorf("unknown job kind %q", req.Kind)
	}
}

// withExtension swaps the stem's extension for ext.
func withExtension(stem, ext string) string {
	if ext == "" {
		return stem
	}
	current := filepath.Ext(stem)
	if strings.EqualFold(current, ext) {
		return stem
	}
	return strings.TrimSuffix(stem, current) + ext
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
