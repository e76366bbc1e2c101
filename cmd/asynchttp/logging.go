// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/speedup/asynchttp/internal/config"
)

// newLogger builds the stderr logger described by cfg. verbose forces debug.
func newLogger(cfg config.LogConfig, w io.Writer, verbose bool) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level.String())
	if err != nil {
		return nil, err
	}
	if verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          config.AppName,
	}), nil
}
