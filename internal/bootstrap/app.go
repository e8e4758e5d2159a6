package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"media-toolkit/internal/actions"
	"media-toolkit/internal/config"
	"media-toolkit/internal/diagnostics"
	"media-toolkit/internal/domain"
	"media-toolkit/internal/jobs"
	"media-toolkit/internal/logging"
	"media-toolkit/internal/paths"
	"media-toolkit/internal/status"
	"media-toolkit/internal/tools"
	"media-toolkit/internal/uiloop"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Push event names.
const (
	EventTabState   = "tab:state"
	EventJobEvent   = "job:event"
	EventJobOutcome = "job:outcome"
)

var errLoopStopped = errors.New("application is shutting down")

// OutcomeNotice is pushed once per finished job.
type OutcomeNotice struct {
	Tab     domain.Tab        `json:"tab"`
	Outcome domain.JobOutcome `json:"outcome"`
}

// App wires configuration, the job runner, diagnostics and the desktop runtime.
// Job handles and presentations are only touched on the UI loop.
type App struct {
	Store   config.Store
	assets  fs.FS
	checker *diagnostics.Checker
	logger  zerolog.Logger
	getenv  func(string) string

	loop      *uiloop.Loop
	runner    *jobs.Runner
	tools     *toolbox
	projector *status.Projector
	lastSeq   int64

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics domain.DiagnosticReport
	runtimeCtx  context.Context
	stop        context.CancelFunc

	emit      func(ctx context.Context, name string, data ...interface{})
	showError func(ctx context.Context, title, message string)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	logger := logging.New("desktop", logging.Config{Level: os.Getenv(logging.EnvLevel)})
	app, err := newApp(config.NewJSONStore(config.SettingsPath()), diagnostics.NewChecker(), nil, logger, os.Getenv)
	if err != nil {
		return nil, err
	}
	app.assets = assets
	return app, nil
}

// newApp wires the app around store. A nil adapter uses the real toolkit.
func newApp(store config.Store, checker *diagnostics.Checker, adapter jobs.Adapter, logger zerolog.Logger, getenv func(string) string) (*App, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	a := &App{
		Store:     store,
		checker:   checker,
		logger:    logger,
		getenv:    getenv,
		tools:     &toolbox{},
		projector: status.NewProjector(),
		emit:      wailsruntime.EventsEmit,
		showError: showErrorDialog,
	}
	if a.getenv == nil {
		a.getenv = func(string) string { return "" }
	}
	a.loop = uiloop.New(logger)

	if adapter == nil {
		adapter = a.tools
	}
	a.runner = jobs.NewRunner(jobs.RunnerConfig{
		Adapter:    adapter,
		Resolver:   paths.NewResolver(),
		Dispatcher: a.loop,
		Events:     jobs.NewEventBus(1000),
		Logger:     logger,
	})
	a.runner.OnChange(a.onJobChange)

	effective := a.applySettings(settings)
	if checker != nil {
		a.diagnostics = checker.Run(effective)
	}
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Media Toolkit",
		Width:       1080,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Logger:      logging.NewWailsLogger(a.logger),
		Bind:        []interface{}{a},
	})
}

// Startup stores the runtime context and starts the UI loop and spinner clock.
func (a *App) Startup(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.runtimeCtx = ctx
	a.stop = cancel
	a.mu.Unlock()

	go a.loop.Run(loopCtx)
	go a.animate(loopCtx)
	a.logger.Info().Msg("desktop app started")
}

// Shutdown cancels running jobs and stops the UI loop.
func (a *App) Shutdown(ctx context.Context) {
	a.runner.CancelAll()

	a.mu.Lock()
	stop := a.stop
	a.runtimeCtx = nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	a.loop.Stop()
	a.logger.Info().Msg("desktop app stopped")
}

// animate advances running spinners at the status cadence.
func (a *App) animate(ctx context.Context) {
	ticker := time.NewTicker(status.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.loop.Dispatch(func() {
				for _, p := range a.projector.Tick() {
					a.push(EventTabState, p)
				}
			})
		}
	}
}

// Submit starts a job on tab. Invalid paths are also reported through a
// blocking error dialog; the job never starts.
func (a *App) Submit(tab string, req domain.JobRequest) (status.Presentation, error) {
	req = a.withDefaults(req)
	t := domain.Tab(strings.TrimSpace(tab))

	var p status.Presentation
	var err error
	ran := a.loop.Call(func() {
		_, err = a.runner.Submit(t, req, func(outcome domain.JobOutcome) {
			a.push(EventJobOutcome, OutcomeNotice{Tab: t, Outcome: outcome})
		})
		p = a.projector.Current(t)
	})
	if !ran {
		return status.Presentation{}, errLoopStopped
	}

	var pathErr *paths.InvalidPathError
	if errors.As(err, &pathErr) {
		a.reportError("Invalid path", pathErr.Error())
	}
	return p, err
}

// CancelJob cancels the job running on tab.
func (a *App) CancelJob(tab string) error {
	var err error
	if !a.loop.Call(func() { err = a.runner.Cancel(domain.Tab(tab)) }) {
		return errLoopStopped
	}
	return err
}

// TabState returns the current presentation of one tab.
func (a *App) TabState(tab string) (status.Presentation, error) {
	t := domain.Tab(tab)
	if _, err := a.runner.Snapshot(t); err != nil {
		return status.Presentation{}, err
	}

	var p status.Presentation
	if !a.loop.Call(func() { p = a.projector.Current(t) }) {
		return status.Presentation{}, errLoopStopped
	}
	return p, nil
}

// TabStates returns every tab's presentation in display order.
func (a *App) TabStates() []status.Presentation {
	var out []status.Presentation
	if !a.loop.Call(func() { out = a.projector.All() }) {
		return nil
	}
	return out
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.runner.Events().Since(sinceSeq)
}

// onJobChange runs on the UI loop after every handle transition.
func (a *App) onJobChange(job domain.Job) {
	a.push(EventTabState, a.projector.Sync(job))

	for _, event := range a.runner.Events().Since(a.lastSeq) {
		a.push(EventJobEvent, event)
		a.lastSeq = event.Seq
	}
}

// withDefaults fills request parameters the user left blank from settings.
func (a *App) withDefaults(req domain.JobRequest) domain.JobRequest {
	settings := a.currentSettings()

	params := make(map[string]string, len(req.Parameters)+1)
	for k, v := range req.Parameters {
		params[k] = v
	}
	switch req.Kind {
	case domain.JobKindCompressVideo:
		if req.Param(domain.ParamTargetSizeBytes) == "" && settings.TargetSizeMB > 0 {
			params[domain.ParamTargetSizeBytes] = strconv.FormatInt(int64(settings.TargetSizeMB)*1024*1024, 10)
		}
	case domain.JobKindConvertAudioFormat:
		if req.Param(domain.ParamAudioFormat) == "" {
			params[domain.ParamAudioFormat] = settings.DefaultAudioFormat
		}
	}
	req.Parameters = params
	return req
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.applySettings(settings)
	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	a.logger.Info().Str("output_dir", normalized.OutputDir).Msg("settings saved")
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// applySettings stores settings and reconfigures the toolkit and timeout
// from their environment-adjusted form, which it returns.
func (a *App) applySettings(settings domain.Settings) domain.Settings {
	effective := config.ApplyEnv(settings, a.getenv)
	a.tools.set(tools.NewToolkit(tools.OptionsFromSettings(effective)))
	a.runner.SetTimeout(effective.JobTimeout())

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return effective
}

func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SuggestOutputStem proposes an output stem for inputPath in the configured
// output directory.
func (a *App) SuggestOutputStem(inputPath string) string {
	return actions.SuggestOutputStem(a.currentSettings().OutputDir, inputPath)
}

// PickInputFile opens a native file dialog filtered for the tab's media.
func (a *App) PickInputFile(tab string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select input file",
		Filters: inputDialogFilters[domain.Tab(tab)],
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputFile opens a native save dialog seeded from the input file.
func (a *App) PickOutputFile(inputPath string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	suggested := a.SuggestOutputStem(inputPath)
	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save output as",
		DefaultDirectory: filepath.Dir(suggested),
		DefaultFilename:  filepath.Base(suggested),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for the default output dir.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.currentSettings().OutputDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// push emits a runtime event when the desktop runtime is up.
func (a *App) push(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && a.emit != nil {
		a.emit(ctx, name, data)
	}
}

// reportError shows a blocking error dialog when the desktop runtime is up.
func (a *App) reportError(title, message string) {
	a.logger.Warn().Str("title", title).Msg(message)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil && a.showError != nil {
		a.showError(ctx, title, message)
	}
}

func showErrorDialog(ctx context.Context, title, message string) {
	_, _ = wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:    wailsruntime.ErrorDialog,
		Title:   title,
		Message: message,
	})
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}

// toolbox lets settings changes swap the toolkit under a running app.
type toolbox struct {
	mu sync.RWMutex
	tk *tools.Toolkit
}

func (b *toolbox) set(tk *tools.Toolkit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tk = tk
}

func (b *toolbox) current() *tools.Toolkit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tk
}

func (b *toolbox) CompressVideo(ctx context.Context, in, out string, targetSizeBytes int64) (tools.Result, error) {
	return b.current().CompressVideo(ctx, in, out, targetSizeBytes)
}

func (b *toolbox) ConvertVideo(ctx context.Context, in, out string) (tools.Result, error) {
	return b.current().ConvertVideo(ctx, in, out)
}

func (b *toolbox) ExportGIF(ctx context.Context, in, out string) (tools.Result, error) {
	return b.current().ExportGIF(ctx, in, out)
}

func (b *toolbox) EnhancePDF(ctx context.Context, in, out string) (tools.Result, error) {
	return b.current().EnhancePDF(ctx, in, out)
}

func (b *toolbox) ConvertAudio(ctx context.Context, in, out string, format domain.AudioFormat) (tools.Result, error) {
	return b.current().ConvertAudio(ctx, in, out, format)
}
