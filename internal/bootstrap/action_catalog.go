package bootstrap

import (
	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"media-toolkit/internal/actions"
	"media-toolkit/internal/domain"
)

var inputDialogFilters = map[domain.Tab][]wailsruntime.FileFilter{
	domain.TabVideo: {
		{DisplayName: "Video files", Pattern: "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.m4v;*.wmv;*.flv"},
		{DisplayName: "All files", Pattern: "*"},
	},
	domain.TabPDF: {
		{DisplayName: "PDF documents", Pattern: "*.pdf"},
		{DisplayName: "All files", Pattern: "*"},
	},
	domain.TabAudio: {
		{DisplayName: "Audio files", Pattern: "*.mp3;*.wav;*.flac;*.ogg;*.m4a;*.aac;*.wma;*.opus"},
		{DisplayName: "All files", Pattern: "*"},
	},
}

// GetActionCatalog returns every action with the formats it accepts.
func (a *App) GetActionCatalog() []domain.ActionOption {
	return actions.Catalog()
}
