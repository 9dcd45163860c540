package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Initialize installs the default slog logger writing to stdout.
func Initialize(loggingType string, logLevelName string) error {
	logger, err := New(os.Stdout, loggingType, logLevelName)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Debug("logging initialized", "type", loggingType, "logLevel", logLevelName)
	return nil
}

// New builds a logger of the given type and level writing to w.
// Tint output is only colored when w is a terminal.
func New(w io.Writer, loggingType string, logLevelName string) (*slog.Logger, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(logLevelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level: %w", err)
	}

	opts := slog.HandlerOptions{
		AddSource: logLevel <= slog.LevelDebug,
		Level:     logLevel,
	}

	var handler slog.Handler
	switch loggingType {
	case JSON:
		handler = slog.NewJSONHandler(w, &opts)
	case Text:
		handler = slog.NewTextHandler(w, &opts)
	case Tint:
		handler = tint.NewHandler(w, &tint.Options{
			AddSource:  opts.AddSource,
			Level:      opts.Level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		})
	default:
		return nil, fmt.Errorf("unknown logging type: %s", loggingType)
	}

	return slog.New(handler), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
