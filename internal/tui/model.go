// Package tui is the terminal front end: one form per tab, driven through
// the same job runner as the desktop app.
package tui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"media-toolkit/internal/actions"
	"media-toolkit/internal/domain"
	"media-toolkit/internal/jobs"
	"media-toolkit/internal/paths"
	"media-toolkit/internal/status"
)

type formField int

const (
	fieldSelector formField = iota
	fieldInput
	fieldOutput
)

type tickMsg time.Time

// tabForm holds one tab's inputs. It survives tab switches.
type tabForm struct {
	tab     domain.Tab
	actions []domain.ActionOption
	kind    int
	format  int
	field   formField
	input   textinput.Model
	output  textinput.Model
	message string
}

// Model is the bubbletea model. Runner and projector are only touched from
// Update, which doubles as the loop job completions are dispatched onto.
type Model struct {
	runner    *jobs.Runner
	projector *status.Projector
	settings  domain.Settings
	logger    zerolog.Logger

	forms  map[domain.Tab]*tabForm
	active int
	width  int
	height int

	// notice is a modal error, shown until dismissed.
	notice string
}

// Config wires a Model.
type Config struct {
	Runner   *jobs.Runner
	Settings domain.Settings
	Logger   zerolog.Logger
}

// New builds a model over runner. The runner's dispatcher must deliver into
// this model's program, see ProgramDispatcher.
func New(cfg Config) Model {
	projector := status.NewProjector()
	cfg.Runner.OnChange(func(job domain.Job) {
		projector.Sync(job)
	})

	m := Model{
		runner:    cfg.Runner,
		projector: projector,
		settings:  cfg.Settings,
		logger:    cfg.Logger,
		forms:     make(map[domain.Tab]*tabForm, len(domain.Tabs)),
		width:     80,
	}
	for _, tab := range domain.Tabs {
		m.forms[tab] = newTabForm(tab, m.width)
	}
	m.focusActive()
	return m
}

func newTabForm(tab domain.Tab, width int) *tabForm {
	f := &tabForm{
		tab:     tab,
		actions: actions.ForTab(tab),
		input:   newInput("input file", width),
		output:  newInput("output path (blank: suggested)", width),
	}
	if !f.hasSelector() {
		f.field = fieldInput
	}
	return f
}

func newInput(placeholder string, width int) textinput.Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = placeholder
	input.CharLimit = 1024
	input.Width = clampInt(width-8, 20, 120)
	return input
}

// hasSelector reports whether the tab shows an operation or format chooser.
func (f *tabForm) hasSelector() bool {
	return len(f.actions) > 1 || f.tab == domain.TabAudio
}

func (f *tabForm) currentKind() domain.JobKind {
	if len(f.actions) == 0 {
		return ""
	}
	return f.actions[f.kind].Kind
}

func (f *tabForm) currentFormat() domain.AudioFormat {
	return domain.AudioFormats[f.format]
}

// cycle moves the selector by delta with wraparound.
func (f *tabForm) cycle(delta int) {
	if f.tab == domain.TabAudio {
		f.format = wrap(f.format+delta, len(domain.AudioFormats))
		return
	}
	f.kind = wrap(f.kind+delta, len(f.actions))
}

// move shifts focus by delta, skipping the selector when there is none.
func (f *tabForm) move(delta int) {
	first := fieldSelector
	if !f.hasSelector() {
		first = fieldInput
	}
	next := f.field + formField(delta)
	if next < first {
		next = first
	}
	if next > fieldOutput {
		next = fieldOutput
	}
	f.field = next
	f.syncFocus()
}

func (f *tabForm) syncFocus() {
	f.input.Blur()
	f.output.Blur()
	switch f.field {
	case fieldInput:
		f.input.Focus()
	case fieldOutput:
		f.output.Focus()
	}
}

func (f *tabForm) blur() {
	f.input.Blur()
	f.output.Blur()
}

// request builds the submission from the form, filling blanks from settings.
func (f *tabForm) request(settings domain.Settings) domain.JobRequest {
	input := strings.TrimSpace(f.input.Value())
	output := strings.TrimSpace(f.output.Value())
	if output == "" {
		output = actions.SuggestOutputStem(settings.OutputDir, input)
	}

	req := domain.JobRequest{
		Kind:           f.currentKind(),
		InputPath:      input,
		OutputPathStem: output,
		Parameters:     map[string]string{},
	}
	switch req.Kind {
	case domain.JobKindCompressVideo:
		if settings.TargetSizeMB > 0 {
			req.Parameters[domain.ParamTargetSizeBytes] = strconv.FormatInt(int64(settings.TargetSizeMB)*1024*1024, 10)
		}
	case domain.JobKindConvertAudioFormat:
		req.Parameters[domain.ParamAudioFormat] = string(f.currentFormat())
	}
	return req
}

func (m Model) activeTab() domain.Tab {
	return domain.Tabs[m.active]
}

func (m Model) activeForm() *tabForm {
	return m.forms[m.activeTab()]
}

func (m *Model) focusActive() {
	for _, f := range m.forms {
		f.blur()
	}
	m.activeForm().syncFocus()
}

// Init starts the spinner clock and cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), textinput.Blink)
}

func tick() tea.Cmd {
	return tea.Tick(status.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles dispatched completions, the spinner clock and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg.fn()
		return m, nil
	case tickMsg:
		m.projector.Tick()
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, f := range m.forms {
			f.input.Width = clampInt(m.width-8, 20, 120)
			f.output.Width = clampInt(m.width-8, 20, 120)
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := strings.ToLower(msg.String())

	if m.notice != "" {
		switch key {
		case "ctrl+c":
			m.runner.CancelAll()
			return m, tea.Quit
		case "esc", "enter":
			m.notice = ""
		}
		return m, nil
	}

	f := m.activeForm()
	switch key {
	case "ctrl+c", "esc":
		m.runner.CancelAll()
		return m, tea.Quit
	case "f1", "f2", "f3":
		m.active = int(key[1]-'1') % len(domain.Tabs)
		m.focusActive()
		return m, nil
	case "ctrl+right", "ctrl+n":
		m.active = wrap(m.active+1, len(domain.Tabs))
		m.focusActive()
		return m, nil
	case "ctrl+left", "ctrl+p":
		m.active = wrap(m.active-1, len(domain.Tabs))
		m.focusActive()
		return m, nil
	case "down", "tab":
		f.move(1)
		return m, nil
	case "up", "shift+tab":
		f.move(-1)
		return m, nil
	case "enter":
		m.submit()
		return m, nil
	case "ctrl+x":
		if err := m.runner.Cancel(f.tab); err != nil {
			f.message = err.Error()
		}
		return m, nil
	}

	if f.field == fieldSelector {
		switch key {
		case "left", "h":
			f.cycle(-1)
		case "right", "l", " ", "space":
			f.cycle(1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if f.field == fieldInput {
		f.input, cmd = f.input.Update(msg)
	} else {
		f.output, cmd = f.output.Update(msg)
	}
	return m, cmd
}

// submit hands the active form to the runner. Path errors become a modal
// notice and never start a job.
func (m *Model) submit() {
	f := m.activeForm()
	req := f.request(m.settings)
	tab := f.tab

	_, err := m.runner.Submit(tab, req, func(outcome domain.JobOutcome) {
		event := m.logger.Info()
		if !outcome.IsSuccess() {
			event = m.logger.Warn().Str("error", outcome.Message)
		}
		event.Str("tab", string(tab)).Str("output", outcome.OutputPath).Msg("job outcome delivered")
	})

	var pathErr *paths.InvalidPathError
	switch {
	case err == nil:
		f.message = ""
	case errors.As(err, &pathErr):
		f.message = ""
		m.notice = pathErr.Error()
	default:
		f.message = err.Error()
	}
}

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
