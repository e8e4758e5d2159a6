package config

import (
	"strings"

	"media-toolkit/internal/domain"
)

// Environment overrides for tool locations.
const (
	EnvFFmpeg    = "MEDIA_TOOLKIT_FFMPEG"
	EnvFFprobe   = "MEDIA_TOOLKIT_FFPROBE"
	EnvPdftoppm  = "MEDIA_TOOLKIT_PDFTOPPM"
	EnvTesseract = "MEDIA_TOOLKIT_TESSERACT"
)

// ApplyEnv overrides tool paths with non-empty environment values.
func ApplyEnv(s domain.Settings, getenv func(string) string) domain.Settings {
	s.FFmpegPath = envOr(getenv, EnvFFmpeg, s.FFmpegPath)
	s.FFprobePath = envOr(getenv, EnvFFprobe, s.FFprobePath)
	s.PdftoppmPath = envOr(getenv, EnvPdftoppm, s.PdftoppmPath)
	s.TesseractPath = envOr(getenv, EnvTesseract, s.TesseractPath)
	return s
}

func envOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}
