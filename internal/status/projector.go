// Package status turns job handle snapshots into what a tab displays.
package status

import (
	"fmt"

	"media-toolkit/internal/domain"
)

// Presentation is everything a tab needs to render its status area.
type Presentation struct {
	Tab                  domain.Tab       `json:"tab"`
	Status               domain.JobStatus `json:"status"`
	JobID                string           `json:"jobId,omitempty"`
	BusyIndicatorVisible bool             `json:"busyIndicatorVisible"`
	Spinner              string           `json:"spinner"`
	StatusText           string           `json:"statusText"`
	ResultText           []string         `json:"resultText,omitempty"`
	OutputPath           string           `json:"outputPath,omitempty"`
}

// Project derives the presentation of job at spinner frame. It has no side
// effects; the busy indicator is visible only while the job runs.
func Project(job domain.Job, frame int) Presentation {
	p := Presentation{
		Tab:    job.Tab,
		Status: job.Status,
		JobID:  job.ID,
	}

	switch job.Status {
	case domain.JobStatusRunning:
		p.BusyIndicatorVisible = true
		p.Spinner = Frames[((frame%len(Frames))+len(Frames))%len(Frames)]
		p.StatusText = runningText(job.Kind)
	case domain.JobStatusDone:
		p.StatusText = "Done"
		if job.LastOutcome != nil {
			p.ResultText = successLines(job.Kind, *job.LastOutcome)
			p.OutputPath = job.LastOutcome.OutputPath
		}
	case domain.JobStatusFailed:
		p.StatusText = "Failed"
		if job.LastOutcome != nil {
			p.ResultText = []string{"Error: " + job.LastOutcome.Message}
		}
	default:
		p.Status = domain.JobStatusIdle
		p.StatusText = "Ready"
	}
	return p
}

func runningText(kind domain.JobKind) string {
	switch kind {
	case domain.JobKindCompressVideo:
		return "Compressing video..."
	case domain.JobKindConvertVideoFormat:
		return "Converting video..."
	case domain.JobKindConvertVideoToGIF:
		return "Creating GIF..."
	case domain.JobKindEnhancePDF:
		return "Enhancing PDF..."
	case domain.JobKindConvertAudioFormat:
		return "Converting audio..."
	default:
		return "Processing..."
	}
}

func successLines(kind domain.JobKind, outcome domain.JobOutcome) []string {
	if kind == domain.JobKindCompressVideo {
		original, okOriginal := outcome.Metric(domain.MetricOriginalBytes)
		result, okResult := outcome.Metric(domain.MetricResultBytes)
		if okOriginal && okResult {
			return []string{
				fmt.Sprintf("Original size: %s", FormatMB(original)),
				fmt.Sprintf("Compressed size: %s", FormatMB(result)),
			}
		}
	}
	return []string{"Saved to: " + outcome.OutputPath}
}

// FormatMB renders a byte count in MiB with two decimals.
func FormatMB(bytes float64) string {
	return fmt.Sprintf("%.2f MB", bytes/1024/1024)
}

// Projector owns one spinner per tab and keeps it in step with the
// handle status. It must only be used from the UI loop.
type Projector struct {
	jobs     map[domain.Tab]domain.Job
	spinners map[domain.Tab]*Spinner
}

// NewProjector creates a projector with idle tabs.
func NewProjector() *Projector {
	p := &Projector{
		jobs:     make(map[domain.Tab]domain.Job, len(domain.Tabs)),
		spinners: make(map[domain.Tab]*Spinner, len(domain.Tabs)),
	}
	for _, tab := range domain.Tabs {
		p.jobs[tab] = domain.Job{Tab: tab, Status: domain.JobStatusIdle}
		p.spinners[tab] = &Spinner{}
	}
	return p
}

// Sync records the latest snapshot of a tab, starting or stopping its
// spinner, and returns the new presentation.
func (p *Projector) Sync(job domain.Job) Presentation {
	spinner, ok := p.spinners[job.Tab]
	if !ok {
		spinner = &Spinner{}
		p.spinners[job.Tab] = spinner
	}
	if job.Status == domain.JobStatusRunning {
		spinner.Start()
	} else {
		spinner.Stop()
	}
	p.jobs[job.Tab] = job
	return Project(job, spinner.Frame())
}

// Tick advances every running spinner and returns the presentations that
// changed.
func (p *Projector) Tick() []Presentation {
	var changed []Presentation
	for _, tab := range domain.Tabs {
		spinner := p.spinners[tab]
		if !spinner.Running() {
			continue
		}
		spinner.Advance()
		changed = append(changed, Project(p.jobs[tab], spinner.Frame()))
	}
	return changed
}

// Current returns the presentation of tab at its current spinner frame.
func (p *Projector) Current(tab domain.Tab) Presentation {
	job, ok := p.jobs[tab]
	if !ok {
		job = domain.Job{Tab: tab, Status: domain.JobStatusIdle}
	}
	frame := 0
	if spinner, ok := p.spinners[tab]; ok {
		frame = spinner.Frame()
	}
	return Project(job, frame)
}

// All returns every tab's presentation in display order.
func (p *Projector) All() []Presentation {
	out := make([]Presentation, 0, len(domain.Tabs))
	for _, tab := range domain.Tabs {
		out = append(out, p.Current(tab))
	}
	return out
}
