package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"media-toolkit/internal/domain"
	"media-toolkit/internal/status"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	tabStyle    = lipgloss.NewStyle().Padding(0, 2)
	noticeStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("203")).Padding(1, 2)
)

var tabTitles = map[domain.Tab]string{
	domain.TabVideo: "Video",
	domain.TabPDF:   "PDF",
	domain.TabAudio: "Audio",
}

// View renders the tab bar, the active form and its status area.
func (m Model) View() string {
	if m.notice != "" {
		body := lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Invalid path"),
			"",
			m.notice,
			"",
			mutedStyle.Render("enter/esc to dismiss"),
		)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, noticeStyle.Render(body))
	}

	header := titleStyle.Render("Media Toolkit")
	body := panelStyle.Width(clampInt(m.width-2, 40, 140)).Render(m.renderForm())
	hints := mutedStyle.Render("F1-F3 tabs · tab/↑↓ fields · ←→ choose · enter start · ctrl+x cancel job · esc quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderTabs(), body, hints)
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(domain.Tabs))
	for i, tab := range domain.Tabs {
		label := tabTitles[tab]
		if p := m.projector.Current(tab); p.BusyIndicatorVisible {
			label += " " + p.Spinner
		}
		if i == m.active {
			parts = append(parts, selStyle.Inherit(tabStyle).Render(label))
			continue
		}
		parts = append(parts, tabStyle.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderForm() string {
	f := m.activeForm()
	lines := []string{}

	if f.hasSelector() {
		lines = append(lines, m.renderSelector(f), "")
	} else if len(f.actions) == 1 {
		lines = append(lines, f.actions[0].Label, mutedStyle.Render(f.actions[0].Description), "")
	}

	lines = append(lines, fieldLabel("Input", f.field == fieldInput), f.input.View(), "")
	lines = append(lines, fieldLabel("Output", f.field == fieldOutput), f.output.View(), "")
	lines = append(lines, renderStatus(m.projector.Current(f.tab))...)

	if f.message != "" {
		lines = append(lines, "", errorStyle.Render(f.message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSelector(f *tabForm) string {
	var options []string
	var current int
	label := "Operation"
	if f.tab == domain.TabAudio {
		label = "Format"
		for _, format := range domain.AudioFormats {
			options = append(options, strings.ToUpper(string(format)))
		}
		current = f.format
	} else {
		for _, action := range f.actions {
			options = append(options, action.Label)
		}
		current = f.kind
	}

	rendered := make([]string, len(options))
	for i, opt := range options {
		if i == current {
			rendered[i] = selStyle.Render(" " + opt + " ")
		} else {
			rendered[i] = " " + opt + " "
		}
	}
	return fieldLabel(label, f.field == fieldSelector) + "\n" + strings.Join(rendered, " ")
}

func renderStatus(p status.Presentation) []string {
	lines := []string{}
	switch p.Status {
	case domain.JobStatusRunning:
		lines = append(lines, p.Spinner+" "+p.StatusText)
	case domain.JobStatusDone:
		lines = append(lines, okStyle.Render(p.StatusText))
	case domain.JobStatusFailed:
		lines = append(lines, errorStyle.Render(p.StatusText))
	default:
		lines = append(lines, mutedStyle.Render(p.StatusText))
	}
	return append(lines, p.ResultText...)
}

func fieldLabel(label string, focused bool) string {
	if focused {
		return titleStyle.Render("› " + label)
	}
	return mutedStyle.Render("  " + label)
}
