package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"media-toolkit/internal/domain"
)

// Options configures tool binaries and per-action tuning.
type Options struct {
	FFmpegPath    string
	FFprobePath   string
	PdftoppmPath  string
	TesseractPath string
	GIFFPS        int
	GIFMaxWidth   int
	GIFMaxFrames  int
	PDFDPI        int
	OCRLanguage   string
	Enhance       EnhanceOptions
}

// OptionsFromSettings maps persisted settings onto toolkit options.
func OptionsFromSettings(s domain.Settings) Options {
	return Options{
		FFmpegPath:    s.FFmpegPath,
		FFprobePath:   s.FFprobePath,
		PdftoppmPath:  s.PdftoppmPath,
		TesseractPath: s.TesseractPath,
		GIFFPS:        s.GIFFPS,
		GIFMaxWidth:   s.GIFMaxWidth,
		GIFMaxFrames:  s.GIFMaxFrames,
		PDFDPI:        s.PDFDPI,
		OCRLanguage:   s.OCRLanguage,
		Enhance:       DefaultEnhanceOptions(),
	}
}

// Toolkit wraps ffmpeg, ffprobe, pdftoppm and tesseract behind blocking calls.
// All calls are safe for concurrent use; each keeps its artifacts in its own
// temporary workspace.
type Toolkit struct {
	ffmpegPath    string
	ffprobePath   string
	pdftoppmPath  string
	tesseractPath string
	gifFPS        int
	gifMaxWidth   int
	gifMaxFrames  int
	pdfDPI        int
	ocrLanguage   string
	enhanceOpts   EnhanceOptions

	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	createTemp  func(dir, pattern string) (*os.File, error)
	removeAll   func(path string) error
	remove      func(name string) error
	rename      func(oldpath, newpath string) error
	stat        func(name string) (os.FileInfo, error)
	mkdirAll    func(path string, perm os.FileMode) error
	readDir     func(name string) ([]os.DirEntry, error)
	mergePDF    func(pages []string, outFile string) error
	enhancePage func(src, dst string) error
}

// NewToolkit constructs the production toolkit with OS dependencies.
func NewToolkit(opts Options) *Toolkit {
	t := &Toolkit{
		ffmpegPath:    orDefault(opts.FFmpegPath, "ffmpeg"),
		ffprobePath:   orDefault(opts.FFprobePath, "ffprobe"),
		pdftoppmPath:  orDefault(opts.PdftoppmPath, "pdftoppm"),
		tesseractPath: orDefault(opts.TesseractPath, "tesseract"),
		gifFPS:        opts.GIFFPS,
		gifMaxWidth:   opts.GIFMaxWidth,
		gifMaxFrames:  opts.GIFMaxFrames,
		pdfDPI:        opts.PDFDPI,
		ocrLanguage:   strings.TrimSpace(opts.OCRLanguage),
		enhanceOpts:   opts.Enhance,
		runner:        &execRunner{},
		mkdirTemp:     os.MkdirTemp,
		createTemp:    os.CreateTemp,
		removeAll:     os.RemoveAll,
		remove:        os.Remove,
		rename:        os.Rename,
		stat:          os.Stat,
		mkdirAll:      os.MkdirAll,
		readDir:       os.ReadDir,
		mergePDF:      mergePDFPages,
	}
	if t.gifFPS <= 0 {
		t.gifFPS = 10
	}
	if t.gifMaxFrames <= 0 {
		t.gifMaxFrames = 600
	}
	if t.pdfDPI <= 0 {
		t.pdfDPI = 300
	}
	if t.enhanceOpts == (EnhanceOptions{}) {
		t.enhanceOpts = DefaultEnhanceOptions()
	}
	t.enhancePage = func(src, dst string) error {
		return EnhancePageFile(src, dst, t.enhanceOpts)
	}
	return t
}

// NewToolkitForTests constructs a toolkit with an injectable runner. Nil
// mergePDF or enhancePage keep the production implementations.
func NewToolkitForTests(
	opts Options,
	runner commandRunner,
	mergePDF func(pages []string, outFile string) error,
	enhancePage func(src, dst string) error,
) *Toolkit {
	t := NewToolkit(opts)
	t.runner = runner
	if mergePDF != nil {
		t.mergePDF = mergePDF
	}
	if enhancePage != nil {
		t.enhancePage = enhancePage
	}
	return t
}

// mergePDFPages concatenates single-page PDFs in the given order.
func mergePDFPages(pages []string, outFile string) error {
	return api.MergeCreateFile(pages, outFile, false, nil)
}

// stageOutput reserves a hidden sibling of dest with the same extension so
// encoders pick the right container and a failed run never leaves a partial
// file under the final name.
func (t *Toolkit) stageOutput(dest string) (string, error) {
	dir := filepath.Dir(dest)
	if err := t.mkdirAll(dir, 0o755); err != nil {
		return "", &ToolError{
			Stage:   StageFinalizing,
			Message: fmt.Sprintf("cannot create output directory: %s", dir),
			Err:     err,
		}
	}

	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	f, err := t.createTemp(dir, "."+base+".partial-*"+ext)
	if err != nil {
		return "", &ToolError{
			Stage:   StageFinalizing,
			Message: fmt.Sprintf("cannot create staging file in: %s", dir),
			Err:     err,
		}
	}
	name := f.Name()
	_ = f.Close()
	return name, nil
}

// commitOutput moves a finished staging file over the destination.
func (t *Toolkit) commitOutput(staged, dest string) error {
	if err := t.rename(staged, dest); err != nil {
		_ = t.remove(staged)
		return &ToolError{
			Stage:   StageFinalizing,
			Message: fmt.Sprintf("cannot move result to: %s", dest),
			Err:     err,
		}
	}
	return nil
}

// requireOutput checks that a command really produced its output file.
func (t *Toolkit) requireOutput(path, stage, message string, log domain.CommandLog) error {
	info, err := t.stat(path)
	if err != nil {
		return &ToolError{Stage: stage, Message: message, CommandLog: log, Err: err}
	}
	if info.Size() == 0 {
		return &ToolError{Stage: stage, Message: message, CommandLog: log, Err: fmt.Errorf("empty file: %s", path)}
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
