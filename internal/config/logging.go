package config

import (
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
)

// SetupLogging installs the default slog logger: text on stdout, plus a
// rotated file when cfg.File is set. Close the returned closer on exit.
func SetupLogging(cfg LogConfig) io.Closer {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(1, cfg.MaxSize), // megabytes
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge), // days
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: cfg.Level,
	}))
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
