package logging

import "github.com/rs/zerolog"

// WailsLogger forwards desktop runtime logs into zerolog.
type WailsLogger struct {
	log zerolog.Logger
}

// NewWailsLogger wraps log for use as the desktop runtime logger.
func NewWailsLogger(log zerolog.Logger) *WailsLogger {
	return &WailsLogger{log: log}
}

func (w *WailsLogger) Print(message string)   { w.log.Log().Msg(message) }
func (w *WailsLogger) Trace(message string)   { w.log.Trace().Msg(message) }
func (w *WailsLogger) Debug(message string)   { w.log.Debug().Msg(message) }
func (w *WailsLogger) Info(message string)    { w.log.Info().Msg(message) }
func (w *WailsLogger) Warning(message string) { w.log.Warn().Msg(message) }
func (w *WailsLogger) Error(message string)   { w.log.Error().Msg(message) }

// Fatal logs at fatal level without exiting; the desktop runtime decides
// how to shut down.
func (w *WailsLogger) Fatal(message string) { w.log.WithLevel(zerolog.FatalLevel).Msg(message) }
