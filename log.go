package melwalletd

import (
	"net/http"
	"time"

	"github.com/decred/melwalletd/build"
	"github.com/decred/melwalletd/secrets"
	"github.com/decred/melwalletd/txprep"
	"github.com/decred/melwalletd/walletcore"
	"github.com/decred/melwalletd/walletdb"
	"github.com/decred/melwalletd/walletsync"
	"github.com/decred/slog"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

// Loggers declared here discard their output until SetupLoggers binds them
// to the root RotatingLogWriter, which writes to stdout (and also to a
// file only once InitLogRotator has been called on it).
var (
	// pkgLoggers is every package-level logger declared below, tracked
	// so SetupLoggers can replace their backing slog.Logger once the
	// real root logger is ready.
	pkgLoggers []*replaceableLogger

	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	// wltdLog is the daemon orchestrator's own logger (component G).
	wltdLog = addPkgLogger("WLTD")
	// rpcsLog logs the JSON-RPC surface.
	rpcsLog = addPkgLogger("RPCS")
)

// SetupLoggers initializes all package-global logger variables across
// melwalletd and its subpackages.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "WLDB", walletdb.UseLogger)
	AddSubLogger(root, "TXPR", txprep.UseLogger)
	AddSubLogger(root, "SYNC", walletsync.UseLogger)
	AddSubLogger(root, "SECR", secrets.UseLogger)
	AddSubLogger(root, "SIGN", walletcore.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more subsystems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// subsystem.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger slog.Logger, useLoggers ...func(slog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure provides a closure over expensive logging operations so they
// aren't evaluated when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string { return c() }

func newLogClosure(c func() string) logClosure { return logClosure(c) }

// LoggingMiddleware wraps an http.Handler, logging method, path, status,
// and latency for every JSON-RPC request. cmd/melwalletd wraps the
// rpc.Server's handler with this before mounting it.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		rpcsLog.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, sw.status,
			time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
