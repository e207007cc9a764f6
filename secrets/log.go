package secrets

import "github.com/decred/slog"

// secrLog is this package's logger. It is replaced once the daemon's
// SetupLoggers has a real root RotatingLogWriter; until then it discards
// output, so the package is safe to use from tests without a daemon.
var secrLog slog.Logger = slog.Disabled

// UseLogger sets the package-wide logger. It is called by melwalletd's
// SetupLoggers during daemon startup.
func UseLogger(logger slog.Logger) {
	secrLog = logger
}
