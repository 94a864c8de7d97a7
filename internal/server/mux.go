// Package server provides the inbound HTTP front end of fbx-gateway.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/fbx-gateway/internal/freebox"
	"github.com/alexjbarnes/fbx-gateway/internal/logging"
)

// Proxy forwards one request to the box with a valid session attached.
type Proxy interface {
	Do(ctx context.Context, req freebox.Request) (*freebox.Envelope, error)
}

// Pairing registers the gateway on the box.
type Pairing interface {
	Authorize(ctx context.Context, info freebox.AppInfo) error
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Proxy          Proxy
	Pairing        Pairing
	AppInfo        freebox.AppInfo
	PairingTimeout time.Duration
	Logger         *slog.Logger

	// RateLimitRPS is the sustained rate allowed on the box-facing
	// routes. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewMux builds the HTTP handler: liveness, pairing, the password
// helper, the player status shortcut and the transparent /api/ proxy.
// Box-facing routes sit behind the rate limiter and every route is
// wrapped in request logging.
func NewMux(cfg MuxConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{
		proxy:          cfg.Proxy,
		pairing:        cfg.Pairing,
		info:           cfg.AppInfo,
		pairingTimeout: cfg.PairingTimeout,
		logger:         logger,
	}

	limit := rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /password-generate", h.handlePasswordGenerate)
	mux.Handle("POST /player-status/{playerId}", limit(http.HandlerFunc(h.handlePlayerStatus)))
	mux.Handle("/api/{path...}", limit(http.HandlerFunc(h.handleProxy)))

	return logging.Middleware(logger)(mux)
}
