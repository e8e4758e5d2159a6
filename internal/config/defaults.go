package config

import (
	"os"
	"path/filepath"
	"strings"

	"media-toolkit/internal/domain"
)

const appDirName = ".media-toolkit"

// AppDir returns the per-user directory holding settings and logs.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}

// SettingsPath returns the default settings file location.
func SettingsPath() string {
	return filepath.Join(AppDir(), "settings.json")
}

// LogPath returns the default log file location.
func LogPath() string {
	return filepath.Join(AppDir(), "app.log")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		PdftoppmPath:       "pdftoppm",
		TesseractPath:      "tesseract",
		OutputDir:          filepath.Join(homeDir, "Documents", "Media Toolkit"),
		TargetSizeMB:       16,
		JobTimeoutMinutes:  120,
		DefaultAudioFormat: string(domain.AudioFormatMP3),
		GIFFPS:             10,
		GIFMaxWidth:        480,
		GIFMaxFrames:       600,
		PDFDPI:             300,
		OCRLanguage:        "eng",
	}
}

// Normalize fills blank or out-of-range fields from the defaults.
func Normalize(s domain.Settings) domain.Settings {
	def := DefaultSettings()

	s.FFmpegPath = orDefault(s.FFmpegPath, def.FFmpegPath)
	s.FFprobePath = orDefault(s.FFprobePath, def.FFprobePath)
	s.PdftoppmPath = orDefault(s.PdftoppmPath, def.PdftoppmPath)
	s.TesseractPath = orDefault(s.TesseractPath, def.TesseractPath)
	s.OutputDir = orDefault(s.OutputDir, def.OutputDir)
	s.OCRLanguage = orDefault(s.OCRLanguage, def.OCRLanguage)

	if format, ok := domain.ParseAudioFormat(s.DefaultAudioFormat); ok {
		s.DefaultAudioFormat = string(format)
	} else {
		s.DefaultAudioFormat = def.DefaultAudioFormat
	}
	if s.TargetSizeMB <= 0 {
		s.TargetSizeMB = def.TargetSizeMB
	}
	if s.JobTimeoutMinutes < 0 {
		s.JobTimeoutMinutes = def.JobTimeoutMinutes
	}
	if s.GIFFPS <= 0 || s.GIFFPS > 50 {
		s.GIFFPS = def.GIFFPS
	}
	if s.GIFMaxWidth < 0 {
		s.GIFMaxWidth = def.GIFMaxWidth
	}
	if s.GIFMaxFrames <= 0 || s.GIFMaxFrames > 5000 {
		s.GIFMaxFrames = def.GIFMaxFrames
	}
	if s.PDFDPI < 72 || s.PDFDPI > 1200 {
		s.PDFDPI = def.PDFDPI
	}
	return s
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
