// Package build provides the logging scaffolding shared by every melwalletd
// subsystem: a rotating file+stdout writer and a registry of per-subsystem
// slog.Logger instances that can be replaced once the daemon's config has
// resolved a log directory.
package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogWriter is an io.Writer that duplicates log output to both stdout and
// a file rotator, once one has been installed via RotatingLogWriter.
type LogWriter struct {
	Rotator *rotator.Rotator
}

// Write writes p to stdout and, if present, to the rotator.
func (w *LogWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.Rotator != nil {
		return w.Rotator.Write(p)
	}
	return len(p), nil
}

// RotatingLogWriter wraps a LogWriter and the decred/slog backend built on
// top of it, tracking every subsystem logger so that SetLogLevels can
// adjust them after the fact.
type RotatingLogWriter struct {
	writer  *LogWriter
	backend *slog.Backend

	subsystems map[string]slog.Logger
}

// NewRotatingLogWriter creates a writer that logs to stdout only, until
// InitLogRotator installs a file rotator.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &LogWriter{}
	return &RotatingLogWriter{
		writer:     w,
		backend:    slog.NewBackend(w),
		subsystems: make(map[string]slog.Logger),
	}
}

// InitLogRotator opens (creating if necessary) the log file at logFile and
// begins rolling it once it exceeds maxLogFileSize MiB, keeping at most
// maxLogFiles rolled copies.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize int64, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	rot, err := rotator.New(logFile, maxLogFileSize*1024, false, maxLogFiles)
	if err != nil {
		return fmt.Errorf("create log rotator: %w", err)
	}
	r.writer.Rotator = rot
	return nil
}

// GenSubLogger returns a fresh slog.Logger for subsystem, backed by this
// writer's rotator. It matches the func(string) slog.Logger shape that
// NewSubLogger expects for its root argument.
func (r *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	return r.backend.Logger(subsystem)
}

// RegisterSubLogger records logger under subsystem so that log-level
// changes issued after startup (e.g. via a debug RPC) can reach it.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.subsystems[subsystem] = logger
}

// SetLogLevel sets the level of a previously registered subsystem logger.
// Unknown subsystems are silently ignored, a common
// tolerant behavior for `--debuglevel` typos.
func (r *RotatingLogWriter) SetLogLevel(subsystem string, level slog.Level) {
	if l, ok := r.subsystems[subsystem]; ok {
		l.SetLevel(level)
	}
}

// NewSubLogger returns a logger for subsystem, using genLogger if supplied
// (the normal path once a RotatingLogWriter exists) or a discard logger
// otherwise (the bootstrap path before config has resolved a log
// directory, so package-level logger vars are never nil).
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.NewBackend(io.Discard).Logger(subsystem)
	}
	return genLogger(subsystem)
}
