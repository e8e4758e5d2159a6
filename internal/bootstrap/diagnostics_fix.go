package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"media-toolkit/internal/config"
	"media-toolkit/internal/diagnostics"
	"media-toolkit/internal/domain"
)

const installCommandTimeout = 45 * time.Minute

type installOption struct {
	manager  string
	commands [][]string
}

// packageNames maps package manager to the package providing one tool.
type packageNames map[string]string

var (
	ffmpegPackages = packageNames{
		"winget": "Gyan.FFmpeg", "choco": "ffmpeg", "scoop": "ffmpeg", "brew": "ffmpeg",
		"apt-get": "ffmpeg", "dnf": "ffmpeg", "pacman": "ffmpeg", "zypper": "ffmpeg",
	}
	popplerPackages = packageNames{
		"choco": "poppler", "scoop": "poppler", "brew": "poppler",
		"apt-get": "poppler-utils", "dnf": "poppler-utils", "pacman": "poppler", "zypper": "poppler-tools",
	}
	tesseractPackages = packageNames{
		"winget": "UB-Mannheim.TesseractOCR", "choco": "tesseract", "scoop": "tesseract", "brew": "tesseract",
		"apt-get": "tesseract-ocr", "dnf": "tesseract", "pacman": "tesseract", "zypper": "tesseract-ocr",
	}
)

// managersFor lists package managers in preference order for an OS.
func managersFor(goos string) []string {
	switch goos {
	case "windows":
		return []string{"winget", "choco", "scoop"}
	case "darwin":
		return []string{"brew"}
	default:
		return []string{"apt-get", "dnf", "pacman", "zypper", "brew"}
	}
}

// installCommands returns the commands installing pkg with manager.
func installCommands(manager, pkg string) [][]string {
	switch manager {
	case "winget":
		return [][]string{{"winget", "install", "--id", pkg, "--exact", "--accept-source-agreements", "--accept-package-agreements"}}
	case "choco":
		return [][]string{{"choco", "install", pkg, "-y"}}
	case "scoop":
		return [][]string{{"scoop", "install", pkg}}
	case "brew":
		return [][]string{{"brew", "install", pkg}}
	case "apt-get":
		return [][]string{{"apt-get", "update"}, {"apt-get", "install", "-y", pkg}}
	case "dnf":
		return [][]string{{"dnf", "install", "-y", pkg}}
	case "pacman":
		return [][]string{{"pacman", "-Sy", "--noconfirm", pkg}}
	case "zypper":
		return [][]string{{"zypper", "install", "-y", pkg}}
	default:
		return nil
	}
}

// installOptionsFor builds the candidate installs of one package set.
func installOptionsFor(goos string, packages packageNames) []installOption {
	return lo.FilterMap(managersFor(goos), func(manager string, _ int) (installOption, bool) {
		pkg, ok := packages[manager]
		if !ok {
			return installOption{}, false
		}
		return installOption{manager: manager, commands: installCommands(manager, pkg)}, true
	})
}

// ocrLanguagePackages maps package manager to the traineddata package of lang.
func ocrLanguagePackages(lang string) packageNames {
	return packageNames{
		"apt-get": "tesseract-ocr-" + lang,
		"dnf":     "tesseract-langpack-" + lang,
		"pacman":  "tesseract-data-" + lang,
		"zypper":  "tesseract-ocr-traineddata-" + lang,
		"brew":    "tesseract-lang",
	}
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	in := newInstaller(a.logger)
	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDFFmpeg, diagnostics.IDFFprobe:
		fixErr = in.installTool("ffmpeg/ffprobe", ffmpegPackages, "ffmpeg", "ffprobe")
	case diagnostics.IDPdftoppm:
		fixErr = in.installTool("poppler", popplerPackages, "pdftoppm")
	case diagnostics.IDTesseract:
		fixErr = in.installTool("tesseract", tesseractPackages, "tesseract")
	case diagnostics.IDOCRLanguage:
		fixErr = in.installOCRLanguages(settings.OCRLanguage)
	case diagnostics.IDOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if fixErr != nil {
		a.logger.Error().Err(fixErr).Str("item", id).Msg("diagnostic fix failed")
	} else {
		a.logger.Info().Str("item", id).Msg("diagnostic fix applied")
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	effective := a.applySettings(settings)
	if a.checker == nil {
		return a.GetDiagnostics()
	}

	report := a.checker.Run(effective)
	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

func ensureLocalBinOnPATH(homeDir string) error {
	binDir := localBinDir(homeDir)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	entries := filepath.SplitList(current)
	for _, entry := range entries {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

func localBinDir(homeDir string) string {
	return filepath.Join(homeDir, ".media-toolkit", "bin")
}

// installer runs package-manager installs. Command execution and lookup
// are injectable for tests.
type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
	logger   zerolog.Logger
}

func newInstaller(logger zerolog.Logger) *installer {
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   logger,
	}
}

func (in *installer) available(name string) bool {
	_, err := in.lookPath(name)
	return err == nil
}

// installTool installs packages with the first working package manager and
// verifies the listed binaries afterwards.
func (in *installer) installTool(label string, packages packageNames, binaries ...string) error {
	if err := in.firstSuccessful(installOptionsFor(in.goos, packages)); err != nil {
		return fmt.Errorf("install %s: %w", label, err)
	}

	missing := lo.Reject(binaries, func(name string, _ int) bool { return in.available(name) })
	if len(missing) > 0 {
		return fmt.Errorf("verify %s on PATH: missing tools on PATH: %s", label, strings.Join(missing, ", "))
	}
	return nil
}

// installOCRLanguages installs traineddata for every code of a "+"-joined
// tesseract language string.
func (in *installer) installOCRLanguages(langSpec string) error {
	langs := lo.Uniq(lo.FilterMap(strings.Split(langSpec, "+"), func(raw string, _ int) (string, bool) {
		lang := strings.TrimSpace(raw)
		return lang, lang != ""
	}))
	for _, lang := range langs {
		if err := in.firstSuccessful(installOptionsFor(in.goos, ocrLanguagePackages(lang))); err != nil {
			return fmt.Errorf("install OCR language %s: %w", lang, err)
		}
	}
	return nil
}

// firstSuccessful tries each option whose manager is installed, in order,
// and stops at the first one whose commands all succeed.
func (in *installer) firstSuccessful(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", in.goos)
	}

	var failures []string
	tried := false
	for _, option := range options {
		if !in.available(option.manager) {
			continue
		}
		tried = true
		in.logger.Info().Str("manager", option.manager).Msg("installing dependency")

		err := in.runAll(option.commands)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", option.manager, err))
	}

	if !tried {
		return fmt.Errorf("no supported package manager found for %s", in.goos)
	}
	return errors.New(strings.Join(failures, " | "))
}

func (in *installer) runAll(commands [][]string) error {
	for _, command := range commands {
		if err := in.runElevated(command); err != nil {
			return err
		}
	}
	return nil
}

// runElevated runs command as is, then through pkexec or non-interactive
// sudo for Linux system package managers.
func (in *installer) runElevated(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if in.goos == "linux" && requiresElevation(command[0]) {
		if in.available("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if in.available("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	var attempts []string
	for _, candidate := range candidates {
		err := in.run(candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		attempts = append(attempts, err.Error())
	}
	return errors.New(strings.Join(attempts, " | "))
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}

func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.OutputDir)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultSettings().OutputDir
		settings.OutputDir = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}
