// Package errreport forwards unexpected server errors to Rollbar.
// With no token configured every call is a no-op.
package errreport

import (
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/rollbar/rollbar-go"
)

var enabled atomic.Bool

// Options configures error reporting.
type Options struct {
	Token       string
	Environment string
	Version     string
}

// Configure enables reporting when a token is present.
// POST: Enabled() reports whether errors will be forwarded
func Configure(opts Options) {
	on := opts.Token != ""
	rollbar.SetEnabled(on)
	enabled.Store(on)
	if !on {
		return
	}
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	rollbar.SetCodeVersion(opts.Version)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	slog.Info("errreport_event", "event", "rollbar_enabled", "environment", opts.Environment)
}

// Enabled reports whether Configure was given a token.
func Enabled() bool {
	return enabled.Load()
}

// Error reports err with the request that produced it.
func Error(r *http.Request, err error, extras map[string]interface{}) {
	if !enabled.Load() || err == nil {
		return
	}
	if r != nil {
		rollbar.RequestErrorWithExtras(rollbar.ERR, r, err, extras)
		return
	}
	rollbar.ErrorWithExtras(rollbar.ERR, err, extras)
}

// Close flushes queued reports. Call once on shutdown.
func Close() {
	if enabled.Load() {
		rollbar.Close()
	}
}
