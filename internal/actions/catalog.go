// Package actions lists the operations each tab offers and how outputs are
// named by default.
package actions

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"media-toolkit/internal/domain"
)

var catalog = []domain.ActionOption{
	{
		Kind:        domain.JobKindCompressVideo,
		Tab:         domain.TabVideo,
		Label:       "Compress video",
		Description: "Re-encode with H.264 at the bitrate that fits the target size.",
	},
	{
		Kind:        domain.JobKindConvertVideoFormat,
		Tab:         domain.TabVideo,
		Label:       "Convert to MP4",
		Description: "Re-encode into a broadly playable H.264/AAC MP4.",
	},
	{
		Kind:        domain.JobKindConvertVideoToGIF,
		Tab:         domain.TabVideo,
		Label:       "Convert to GIF",
		Description: "Sample frames and assemble a looping GIF.",
	},
	{
		Kind:        domain.JobKindEnhancePDF,
		Tab:         domain.TabPDF,
		Label:       "Enhance PDF",
		Description: "Clean up scanned pages and add a searchable text layer.",
	},
	{
		Kind:        domain.JobKindConvertAudioFormat,
		Tab:         domain.TabAudio,
		Label:       "Convert audio",
		Description: "Re-encode audio into the selected format.",
	},
}

// Catalog returns every action with the formats it accepts. Callers own
// the returned slices.
func Catalog() []domain.ActionOption {
	formats := lo.Map(domain.AudioFormats, func(f domain.AudioFormat, _ int) string {
		return string(f)
	})
	return lo.Map(catalog, func(opt domain.ActionOption, _ int) domain.ActionOption {
		if opt.Kind == domain.JobKindConvertAudioFormat {
			opt.Formats = append([]string(nil), formats...)
		}
		return opt
	})
}

// ForTab returns the catalog entries owned by tab in display order.
func ForTab(tab domain.Tab) []domain.ActionOption {
	return lo.Filter(Catalog(), func(opt domain.ActionOption, _ int) bool {
		return opt.Tab == tab
	})
}

// SuggestOutputStem proposes an output stem in outputDir named after the
// input file. A blank outputDir keeps the input's directory.
func SuggestOutputStem(outputDir, inputPath string) string {
	base := filepath.Base(strings.TrimSpace(inputPath))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	stem := strings.TrimLeft(strings.TrimSuffix(base, filepath.Ext(base)), ".")
	dir := strings.TrimSpace(outputDir)
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, stem+"-converted")
}
