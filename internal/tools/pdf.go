package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"media-toolkit/internal/domain"
)

// maxPageDigits bounds the zero padding pdftoppm applies to page numbers.
const maxPageDigits = 6

// EnhancePDF rasterizes every page, cleans it up for OCR, rebuilds each page
// as a searchable PDF with tesseract and merges the pages in order. The
// destination is only replaced once every page succeeded.
func (t *Toolkit) EnhancePDF(ctx context.Context, inputPath, outputPath string) (Result, error) {
	tempDir, err := t.mkdirTemp("", "media-toolkit-pdf-*")
	if err != nil {
		return Result{}, &ToolError{
			Stage:   StageRasterizing,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() { _ = t.removeAll(tempDir) }()

	prefix := filepath.Join(tempDir, "page")
	rasterLog, err := t.run(ctx, StageRasterizing, "pdftoppm rasterization failed", t.pdftoppmPath, buildPdftoppmArgs(inputPath, prefix, t.pdfDPI)...)
	if err != nil {
		return Result{}, err
	}
	logs := []domain.CommandLog{rasterLog}

	pages := t.collectPages(prefix)
	if len(pages) == 0 {
		return Result{}, &ToolError{
			Stage:      StageRasterizing,
			Message:    "rasterizer produced no pages",
			CommandLog: rasterLog,
		}
	}

	pagePDFs := make([]string, 0, len(pages))
	for i, page := range pages {
		n := i + 1
		if err := cancelled(ctx, StageOCR); err != nil {
			return Result{}, err
		}

		enhanced := filepath.Join(tempDir, fmt.Sprintf("enhanced-%d.png", n))
		if err := t.enhancePage(page, enhanced); err != nil {
			return Result{}, &ToolError{
				Stage:   StageEnhancing,
				Message: fmt.Sprintf("page %d enhancement failed", n),
				Err:     err,
			}
		}

		base := filepath.Join(tempDir, fmt.Sprintf("ocr-%d", n))
		ocrLog, err := t.run(ctx, StageOCR, fmt.Sprintf("tesseract failed on page %d", n), t.tesseractPath, buildTesseractArgs(enhanced, base, t.ocrLanguage)...)
		if err != nil {
			return Result{}, err
		}
		logs = append(logs, ocrLog)

		pagePDF := base + ".pdf"
		if err := t.requireOutput(pagePDF, StageOCR, fmt.Sprintf("tesseract produced no PDF for page %d", n), ocrLog); err != nil {
			return Result{}, err
		}
		pagePDFs = append(pagePDFs, pagePDF)
	}

	if err := cancelled(ctx, StageAssembling); err != nil {
		return Result{}, err
	}

	staged, err := t.stageOutput(outputPath)
	if err != nil {
		return Result{}, err
	}
	if err := t.mergePDF(pagePDFs, staged); err != nil {
		_ = t.remove(staged)
		return Result{}, &ToolError{
			Stage:   StageAssembling,
			Message: "failed to merge OCR pages",
			Err:     err,
		}
	}
	if err := t.commitOutput(staged, outputPath); err != nil {
		return Result{}, err
	}

	return Result{
		OutputPath: outputPath,
		Metrics:    map[string]float64{domain.MetricPages: float64(len(pagePDFs))},
		Logs:       logs,
	}, nil
}

// collectPages returns page images numbered from 1 until the first gap.
func (t *Toolkit) collectPages(prefix string) []string {
	var pages []string
	for n := 1; ; n++ {
		path, ok := t.pagePath(prefix, n)
		if !ok {
			return pages
		}
		pages = append(pages, path)
	}
}

// pagePath finds page n as written by pdftoppm, which zero pads the number
// to the digit count of the last page.
func (t *Toolkit) pagePath(prefix string, n int) (string, bool) {
	digits := len(strconv.Itoa(n))
	for width := digits; width <= maxPageDigits; width++ {
		path := fmt.Sprintf("%s-%0*d.png", prefix, width, n)
		if info, err := t.stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// buildPdftoppmArgs builds rasterizer args producing <prefix>-<n>.png files.
func buildPdftoppmArgs(inputPath, prefix string, dpi int) []string {
	return []string{
		"-r", strconv.Itoa(dpi),
		"-png",
		inputPath,
		prefix,
	}
}

// buildTesseractArgs builds OCR args that emit <base>.pdf with a text layer.
func buildTesseractArgs(imagePath, outputBase, language string) []string {
	args := []string{imagePath, outputBase}
	if language != "" {
		args = append(args, "-l", language)
	}
	return append(args, "pdf")
}
