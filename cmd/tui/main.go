package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"media-toolkit/internal/config"
	"media-toolkit/internal/jobs"
	"media-toolkit/internal/logging"
	"media-toolkit/internal/paths"
	"media-toolkit/internal/tools"
	"media-toolkit/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "media-toolkit:", err)
		os.Exit(1)
	}
}

func run() error {
	if !stdinIsTTY() {
		return errors.New("the terminal UI requires an interactive terminal (TTY)")
	}

	logFile, err := logging.OpenFile(config.LogPath())
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := logging.New("tui", logging.Config{Out: logFile, Level: os.Getenv(logging.EnvLevel), NoColor: true})

	settings, err := config.NewJSONStore(config.SettingsPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings, os.Getenv)

	dispatcher := &tui.ProgramDispatcher{}
	runner := jobs.NewRunner(jobs.RunnerConfig{
		Adapter:    tools.NewToolkit(tools.OptionsFromSettings(settings)),
		Resolver:   paths.NewResolver(),
		Dispatcher: dispatcher,
		Events:     jobs.NewEventBus(1000),
		Logger:     logger,
		Timeout:    settings.JobTimeout(),
	})

	p := tea.NewProgram(tui.New(tui.Config{Runner: runner, Settings: settings, Logger: logger}), tea.WithAltScreen())
	dispatcher.Attach(p)

	_, err = p.Run()
	runner.CancelAll()
	runner.Wait()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("the terminal UI requires an interactive terminal (TTY)")
		}
		return err
	}
	return nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
