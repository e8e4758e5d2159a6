package domain

import "time"

// DiagnosticStatus is the result of one dependency check.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one dependency check. Fixable items can be remediated
// from the app (package install or directory creation).
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
	Fixable bool             `json:"fixable,omitempty"`
}

// DiagnosticReport is the full set of checks shown in settings.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// NewDiagnosticReport stamps items and derives HasFailures.
func NewDiagnosticReport(at time.Time, items []DiagnosticItem) DiagnosticReport {
	report := DiagnosticReport{GeneratedAt: at, Items: items}
	for _, item := range items {
		if item.Status == DiagnosticStatusFail {
			report.HasFailures = true
			break
		}
	}
	return report
}

// Item returns the check with id.
func (r DiagnosticReport) Item(id string) (DiagnosticItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DiagnosticItem{}, false
}
