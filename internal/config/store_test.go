package config

import (
	"os"
	"path/filepath"
	"testing"

	"media-toolkit/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.TargetSizeMB != 16 {
		t.Fatalf("target size = %d, want 16", cfg.TargetSizeMB)
	}
	if cfg.DefaultAudioFormat != "mp3" {
		t.Fatalf("audio format = %q, want mp3", cfg.DefaultAudioFormat)
	}
	if cfg.OutputDir == "" || cfg.FFmpegPath == "" {
		t.Fatal("expected non-empty output dir and ffmpeg path")
	}
	if cfg.JobTimeout() <= 0 {
		t.Fatal("expected a default job timeout")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := DefaultSettings()
	want.FFmpegPath = "/opt/ffmpeg/bin/ffmpeg"
	want.OutputDir = "/out"
	want.DefaultAudioFormat = "flac"
	want.PDFDPI = 200

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

// TestJSONStoreLoadFillsMissingFields checks older files gain new defaults.
func TestJSONStoreLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"outputDir":"/exports","defaultAudioFormat":"OGG"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/exports" || got.DefaultAudioFormat != "ogg" {
		t.Fatalf("explicit fields lost: %+v", got)
	}
	if got.TesseractPath != "tesseract" || got.PDFDPI != 300 || got.GIFFPS != 10 {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestNormalizeClampsRanges checks out-of-range values fall back.
func TestNormalizeClampsRanges(t *testing.T) {
	got := Normalize(domain.Settings{GIFFPS: 500, GIFMaxFrames: -3, PDFDPI: 10, TargetSizeMB: -1, DefaultAudioFormat: "aiff"})
	def := DefaultSettings()
	if got.GIFFPS != def.GIFFPS || got.GIFMaxFrames != def.GIFMaxFrames || got.PDFDPI != def.PDFDPI || got.TargetSizeMB != def.TargetSizeMB {
		t.Fatalf("ranges not clamped: %+v", got)
	}
	if got.DefaultAudioFormat != "mp3" {
		t.Fatalf("audio format = %q, want mp3", got.DefaultAudioFormat)
	}
	if got.JobTimeoutMinutes != 0 {
		t.Fatalf("zero timeout should be kept as disabled, got %d", got.JobTimeoutMinutes)
	}
}

// TestApplyEnvOverridesToolPaths checks environment precedence.
func TestApplyEnvOverridesToolPaths(t *testing.T) {
	env := map[string]string{
		EnvFFmpeg:    "/custom/ffmpeg",
		EnvTesseract: "  ",
	}
	got := ApplyEnv(DefaultSettings(), func(k string) string { return env[k] })

	if got.FFmpegPath != "/custom/ffmpeg" {
		t.Fatalf("ffmpeg = %q", got.FFmpegPath)
	}
	if got.TesseractPath != "tesseract" || got.FFprobePath != "ffprobe" {
		t.Fatalf("unset overrides changed paths: %+v", got)
	}
}
