package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"media-toolkit/internal/domain"
)

// Diagnostic item IDs.
const (
	IDFFmpeg      = "tool_ffmpeg"
	IDFFprobe     = "tool_ffprobe"
	IDPdftoppm    = "tool_pdftoppm"
	IDTesseract   = "tool_tesseract"
	IDOCRLanguage = "ocr_language"
	IDOutputDir   = "output_dir"
)

const listLangsTimeout = 10 * time.Second

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	listLangs  func(ctx context.Context, tesseractPath string) (string, error)
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		listLangs:  tesseractLanguages,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(IDFFmpeg, "ffmpeg", settings.FFmpegPath, "Needed for every video and audio action."),
		c.checkTool(IDFFprobe, "ffprobe", settings.FFprobePath, "Needed to read video duration for compression."),
		c.checkTool(IDPdftoppm, "pdftoppm", settings.PdftoppmPath, "Part of poppler; needed to rasterize PDF pages."),
	}
	tesseract := c.checkTool(IDTesseract, "tesseract", settings.TesseractPath, "Needed for PDF enhancement (OCR).")
	items = append(items, tesseract)
	if tesseract.Status == domain.DiagnosticStatusPass {
		items = append(items, c.checkOCRLanguage(settings.TesseractPath, settings.OCRLanguage))
	}
	items = append(items, c.checkOutputDir(settings.OutputDir))

	return domain.NewDiagnosticReport(time.Now().UTC(), items)
}

// checkTool verifies a configured executable resolves, either as a path or
// through PATH.
func (c *Checker) checkTool(id, name, configured, purpose string) domain.DiagnosticItem {
	bin := strings.TrimSpace(configured)
	if bin == "" {
		bin = name
	}

	path, err := c.lookPath(bin)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found: %s", bin),
			Hint:    purpose + " Install it or set its path in settings.",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:      id,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkOCRLanguage verifies tesseract has traineddata for the OCR language.
func (c *Checker) checkOCRLanguage(tesseractPath, language string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDOCRLanguage,
		Name: "OCR language",
	}

	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "eng"
	}

	ctx, cancel := context.WithTimeout(context.Background(), listLangsTimeout)
	defer cancel()
	out, err := c.listLangs(ctx, tesseractPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Cannot list tesseract languages."
		item.Hint = "Run tesseract --list-langs manually to inspect the installation."
		return item
	}

	for _, wanted := range strings.Split(lang, "+") {
		if !hasLanguage(out, wanted) {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Tesseract language data missing: %s", wanted)
			item.Hint = "Install the tesseract language pack or change the OCR language in settings."
			item.Fixable = true
			return item
		}
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Language data available: %s", lang)
	return item
}

// hasLanguage scans tesseract --list-langs output, one code per line after
// a header line.
func hasLanguage(listing, lang string) bool {
	for _, line := range strings.Split(listing, "\n") {
		if strings.TrimSpace(line) == lang {
			return true
		}
	}
	return false
}

// tesseractLanguages runs tesseract --list-langs. Older releases print
// the listing on stderr.
func tesseractLanguages(ctx context.Context, tesseractPath string) (string, error) {
	bin := strings.TrimSpace(tesseractPath)
	if bin == "" {
		bin = "tesseract"
	}
	out, err := exec.CommandContext(ctx, bin, "--list-langs").CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set a default output directory in settings."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for converted files."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	listLangs func(ctx context.Context, tesseractPath string) (string, error),
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		listLangs:  listLangs,
	}
}

