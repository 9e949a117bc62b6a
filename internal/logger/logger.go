// Copyright 2026 The tinyOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is a small leveled-logging shim over log/slog, grounded
// on github.com/googlecloudplatform/gcsfuse's internal/logger: a package
// of level functions (Tracef/Debugf/Infof/Warnf/Errorf) backed by a
// loggerFactory that can emit either text or JSON and is reconfigured at
// runtime from internal/config's settings (see tinyos.New).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity mirrors gcsfuse's config.{TRACE,DEBUG,INFO,WARNING,ERROR,OFF}
// ladder; slog only ships four levels, so TRACE is modeled as one level
// below Debug.
type Severity int

const (
	OFF Severity = iota
	ERROR
	WARNING
	INFO
	DEBUG
	TRACE
)

const levelTrace = slog.LevelDebug - 4

func (s Severity) slogLevel() slog.Level {
	switch s {
	case ERROR:
		return slog.LevelError
	case WARNING:
		return slog.LevelWarn
	case INFO:
		return slog.LevelInfo
	case DEBUG:
		return slog.LevelDebug
	case TRACE:
		return levelTrace
	default:
		return slog.LevelError + 4 // above Error: nothing logs.
	}
}

// factory builds the slog.Handler the package-level logger writes
// through, matching gcsfuse's defaultLoggerFactory/createJsonOrTextHandler
// split between "text" and "json" output.
type factory struct {
	format string // "text" or "json"
}

func (f *factory) handler(w io.Writer, level *slog.LevelVar) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	programLevel  = new(slog.LevelVar)
	defaultFactory = &factory{format: "text"}
	defaultLogger  = slog.New(defaultFactory.handler(os.Stderr, programLevel))
)

// SetLevel adjusts the running severity threshold.
func SetLevel(s Severity) {
	programLevel.Set(s.slogLevel())
}

// SetFormat switches between "text" and "json" output.
func SetFormat(format string) {
	defaultFactory.format = format
	defaultLogger = slog.New(defaultFactory.handler(os.Stderr, programLevel))
}

// SetOutput redirects the logger, used by tests to capture output.
func SetOutput(w io.Writer) {
	defaultLogger = slog.New(defaultFactory.handler(w, programLevel))
}

func log(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any) { log(levelTrace, format, args...) }
func Debugf(format string, args ...any) { log(slog.LevelDebug, format, args...) }
func Infof(format string, args ...any)  { log(slog.LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { log(slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any) { log(slog.LevelError, format, args...) }
