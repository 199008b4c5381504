package config

import (
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dittovault/internal/logger"
)

// ConfigureLogging applies the logging section to the global logger. The
// returned closer releases the log file, if one was opened.
func ConfigureLogging(cfg LoggingConfig) (io.Closer, error) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch cfg.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(f)
		return f, nil
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
