// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cargofetcher/cargofetcher/pkg/fetcher"
	"github.com/lmittmann/tint"
)

// parseLogLevel maps the CLI's --log-level values onto slog.Level. "off"
// and "trace" have no slog equivalent: "off" is handled by the caller by
// swapping in fetcher.NullUI instead of building a logger at all, and
// "trace" collapses onto debug since slog has no finer level.
func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "error":
		return slog.LevelError, nil
	case "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug", "trace":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// newLogUI builds a UI backed by log/slog with tint's colorized,
// human-friendly handler, or fetcher.NullUI when level is "off".
func newLogUI(level string) (fetcher.UI, error) {
	if level == "off" {
		return fetcher.NullUI, nil
	}
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
	return &slogUI{logger: logger}, nil
}

type slogUI struct {
	logger *slog.Logger
}

func (u *slogUI) ReportError(format string, a ...interface{}) error {
	u.logger.Error(fmt.Sprintf(format, a...))
	return fetcher.ErrAlreadyReported
}

func (u *slogUI) ReportWarning(format string, a ...interface{}) {
	u.logger.Warn(fmt.Sprintf(format, a...))
}

func (u *slogUI) ReportInfo(format string, a ...interface{}) {
	u.logger.Info(fmt.Sprintf(format, a...))
}
