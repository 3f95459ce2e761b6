package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dshills/luashell/internal/config"
)

// NewLogger builds the host logger from the logging configuration. Output
// defaults to os.Stderr.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var formatter log.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("log format %q", cfg.Format)
	}

	return log.NewWithOptions(w, log.Options{
		Prefix:          "luashell",
		Level:           level,
		Formatter:       formatter,
		ReportCaller:    cfg.Caller,
		ReportTimestamp: formatter != log.TextFormatter,
	}), nil
}
