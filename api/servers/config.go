package servers

import (
	"log/slog"
	"time"
)

// Config holds the listener, feature toggles and shutdown timings of a Server.
type Config struct {
	ListenAddr string
	Log        *slog.Logger

	// EnablePprof mounts net/http/pprof under /debug.
	EnablePprof bool
	// EnableRPC mounts the ledger and factory JSON-RPC services at /rpc.
	EnableRPC bool

	// DrainDuration is how long Shutdown reports not-ready before closing
	// the listener.
	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}
