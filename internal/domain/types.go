package domain

import (
	"strings"
	"time"
)

// Tab identifies one independent submission surface of the UI.
type Tab string

const (
	TabVideo Tab = "video"
	TabPDF   Tab = "pdf"
	TabAudio Tab = "audio"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabVideo, TabPDF, TabAudio}

// JobKind selects the media operation a job performs.
type JobKind string

const (
	JobKindCompressVideo      JobKind = "compress_video"
	JobKindConvertVideoFormat JobKind = "convert_video_format"
	JobKindConvertVideoToGIF  JobKind = "convert_video_gif"
	JobKindEnhancePDF         JobKind = "enhance_pdf"
	JobKindConvertAudioFormat JobKind = "convert_audio_format"
)

// Valid reports whether the kind is one of the known operations.
func (k JobKind) Valid() bool {
	_, ok := k.tab()
	return ok
}

// Tab returns the tab that owns jobs of this kind.
func (k JobKind) Tab() Tab {
	tab, _ := k.tab()
	return tab
}

func (k JobKind) tab() (Tab, bool) {
	switch k {
	case JobKindCompressVideo, JobKindConvertVideoFormat, JobKindConvertVideoToGIF:
		return TabVideo, true
	case JobKindEnhancePDF:
		return TabPDF, true
	case JobKindConvertAudioFormat:
		return TabAudio, true
	default:
		return "", false
	}
}

// Request parameter keys.
const (
	ParamAudioFormat     = "format"
	ParamTargetSizeBytes = "targetSizeBytes"
)

// DefaultTargetSizeBytes is the compression target when none is requested.
const DefaultTargetSizeBytes int64 = 16 * 1024 * 1024

// JobRequest is built from UI state at submission time.
type JobRequest struct {
	Kind           JobKind           `json:"kind"`
	InputPath      string            `json:"inputPath"`
	OutputPathStem string            `json:"outputPathStem"`
	Parameters     map[string]string `json:"parameters,omitempty"`
}

// Param returns a trimmed request parameter or empty string.
func (r JobRequest) Param(key string) string {
	if r.Parameters == nil {
		return ""
	}
	return strings.TrimSpace(r.Parameters[key])
}

// AudioFormat is one supported audio re-encode target.
type AudioFormat string

const (
	AudioFormatMP3  AudioFormat = "mp3"
	AudioFormatWAV  AudioFormat = "wav"
	AudioFormatFLAC AudioFormat = "flac"
	AudioFormatOGG  AudioFormat = "ogg"
)

// AudioFormats lists supported audio targets in selector order.
var AudioFormats = []AudioFormat{AudioFormatMP3, AudioFormatWAV, AudioFormatFLAC, AudioFormatOGG}

// Extension returns the canonical file extension including the dot.
func (f AudioFormat) Extension() string {
	return "." + string(f)
}

// ParseAudioFormat normalizes user input to a supported format.
func ParseAudioFormat(raw string) (AudioFormat, bool) {
	format := AudioFormat(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")))
	for _, known := range AudioFormats {
		if format == known {
			return known, true
		}
	}
	return "", false
}

// Metric keys reported on successful outcomes.
const (
	MetricOriginalBytes   = "originalBytes"
	MetricResultBytes     = "resultBytes"
	MetricTargetBitrate   = "targetBitrate"
	MetricDurationSeconds = "durationSeconds"
	MetricPages           = "pages"
	MetricFrames          = "frames"
)

// OutcomeKind tags a JobOutcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// JobOutcome is the single terminal result of a job.
type JobOutcome struct {
	Kind       OutcomeKind        `json:"kind"`
	OutputPath string             `json:"outputPath,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Message    string             `json:"message,omitempty"`
	Logs       []CommandLog       `json:"logs,omitempty"`
}

// Success builds a successful outcome.
func Success(outputPath string, metrics map[string]float64) JobOutcome {
	return JobOutcome{Kind: OutcomeSuccess, OutputPath: outputPath, Metrics: metrics}
}

// Failure builds a failed outcome.
func Failure(message string) JobOutcome {
	return JobOutcome{Kind: OutcomeFailure, Message: message}
}

// IsSuccess reports whether the outcome is tagged success.
func (o JobOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// Metric returns a metric value and whether it was reported.
func (o JobOutcome) Metric(key string) (float64, bool) {
	v, ok := o.Metrics[key]
	return v, ok
}

// JobStatus tracks the lifecycle of the job owned by one tab.
type JobStatus string

const (
	JobStatusIdle    JobStatus = "idle"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job is a snapshot of one tab's job handle.
type Job struct {
	Tab         Tab         `json:"tab"`
	ID          string      `json:"id,omitempty"`
	Kind        JobKind     `json:"kind,omitempty"`
	Status      JobStatus   `json:"status"`
	OutputPath  string      `json:"outputPath,omitempty"`
	StartedAt   time.Time   `json:"startedAt,omitempty"`
	FinishedAt  time.Time   `json:"finishedAt,omitempty"`
	LastOutcome *JobOutcome `json:"lastOutcome,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	FFmpegPath         string `json:"ffmpegPath"`
	FFprobePath        string `json:"ffprobePath"`
	PdftoppmPath       string `json:"pdftoppmPath"`
	TesseractPath      string `json:"tesseractPath"`
	OutputDir          string `json:"outputDir"`
	TargetSizeMB       int    `json:"targetSizeMB"`
	JobTimeoutMinutes  int    `json:"jobTimeoutMinutes"`
	DefaultAudioFormat string `json:"defaultAudioFormat"`
	GIFFPS             int    `json:"gifFps"`
	GIFMaxWidth        int    `json:"gifMaxWidth"`
	GIFMaxFrames       int    `json:"gifMaxFrames"`
	PDFDPI             int    `json:"pdfDpi"`
	OCRLanguage        string `json:"ocrLanguage"`
}

// JobTimeout returns the configured per-job timeout; zero disables it.
func (s Settings) JobTimeout() time.Duration {
	if s.JobTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}

// ActionOption describes one user-triggerable action for the frontends.
type ActionOption struct {
	Kind        JobKind  `json:"kind"`
	Tab         Tab      `json:"tab"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Formats     []string `json:"formats,omitempty"`
}
