package servers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/subaccount-factory/api/handlers"
	"go.uber.org/atomic"
)

// Server is the HTTP front of the factory ledger.
type Server struct {
	cfg     *Config
	isReady atomic.Bool

	handler *handlers.Handler
	rpc     *rpc.Server
	srv     *http.Server
}

// New creates a server. rpcServer may be nil when JSON-RPC is disabled.
func New(cfg *Config, handler *handlers.Handler, rpcServer *rpc.Server) *Server {
	srv := &Server{
		cfg:     cfg,
		handler: handler,
		rpc:     rpcServer,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

// Handler returns the router. It is exposed for tests.
func (srv *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(srv.httpLogger)
	mux.Use(middleware.Recoverer)

	mux.Get("/api/public/registration_fee", srv.handler.HandleRegistrationFee)
	mux.Get("/api/public/accounts/{account_id}", srv.handler.HandleAccount)
	mux.Get("/api/public/receipts/{receipt_id}", srv.handler.HandleReceipt)
	mux.Post("/api/tx", srv.handler.HandleTransaction)

	if srv.cfg.EnableRPC && srv.rpc != nil {
		mux.Handle("/rpc", srv.rpc)
	}

	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)
	mux.Get("/drain", srv.handleDrain)
	mux.Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.cfg.Log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.cfg.Log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "alive")
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeStatus(w, http.StatusOK, "already draining")
		return
	}

	srv.cfg.Log.Info("Server marked as not ready")
	writeStatus(w, http.StatusOK, "draining")
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeStatus(w, http.StatusOK, "already ready")
		return
	}

	srv.cfg.Log.Info("Server marked as ready")
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}

// RunInBackground starts serving without blocking.
func (srv *Server) RunInBackground() {
	go func() {
		srv.cfg.Log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.cfg.Log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown marks the server not ready, waits the drain duration so load
// balancers notice, then stops accepting requests.
func (srv *Server) Shutdown() {
	if srv.isReady.Swap(false) && srv.cfg.DrainDuration > 0 {
		srv.cfg.Log.Info("Draining before shutdown", "duration", srv.cfg.DrainDuration)
		time.Sleep(srv.cfg.DrainDuration)
	}

	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.cfg.Log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.cfg.Log.Info("HTTP server gracefully stopped")
	}

	if srv.rpc != nil {
		srv.rpc.Stop()
	}
}
