package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/matthew-graves/the-zyndicator/internal/config"
)

// newLogger builds the JSON logger used by every command. Records go to out
// (stderr, so scan results own stdout). When cfg.File is
// set, records also go to a size-rotated file and the returned closer must be
// closed on exit.
func newLogger(cfg config.LogConfig, verbose bool, out io.Writer) (*slog.Logger, io.Closer, error) {
	writers := []io.Writer{out}
	var closer io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			LocalTime:  true,
			Compress:   cfg.Compress,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: logLevel(cfg.Level, verbose),
	}))
	return logger, closer, nil
}

// logLevel maps the configured level name; verbose forces debug.
func logLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
