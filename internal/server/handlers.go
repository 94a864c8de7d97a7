package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/fbx-gateway/internal/errors"
	"github.com/alexjbarnes/fbx-gateway/internal/freebox"
	"github.com/alexjbarnes/fbx-gateway/internal/logging"
)

// maxRequestBody caps inbound bodies forwarded to the box.
const maxRequestBody = 1 << 20

// hopHeaders are connection-scoped and never forwarded (RFC 9110 7.6.1),
// along with the headers net/http derives from the outgoing request.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Content-Length",
	"Accept-Encoding",
}

type handlers struct {
	proxy          Proxy
	pairing        Pairing
	info           freebox.AppInfo
	pairingTimeout time.Duration
	logger         *slog.Logger
}

func (h *handlers) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Hello World!")
}

// handleRegister pairs the gateway with the box. The request stays
// open until the user answers on the box or the pairing timeout ends.
func (h *handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pairingTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.pairingTimeout)
		defer cancel()
	}

	logging.FromContext(ctx, h.logger).Info("pairing requested, waiting for approval on the box",
		slog.String("app_id", h.info.AppID),
	)

	if err := h.pairing.Authorize(ctx, h.info); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type passwordRequest struct {
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
}

type passwordResponse struct {
	Password string `json:"password"`
}

// handlePasswordGenerate derives a session password from a challenge
// and app token supplied by the caller. It touches no session state.
func (h *handlers) handlePasswordGenerate(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %v", apperrors.ErrInvalidBody, err))
		return
	}

	if req.Challenge == "" || req.Token == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: challenge and token are required", apperrors.ErrInvalidBody))
		return
	}

	writeJSON(w, http.StatusOK, passwordResponse{
		Password: freebox.DerivePassword(req.Challenge, req.Token),
	})
}

// handlePlayerStatus returns the status envelope of a Freebox Player.
// The player API is only published under v6.
func (h *handlers) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("playerId")
	if playerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player id is required"})
		return
	}

	env, err := h.proxy.Do(r.Context(), freebox.Request{
		Method: http.MethodGet,
		Path:   "v6/player/" + url.PathEscape(playerID) + "/api/v6/status/",
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeRaw(w, http.StatusOK, env.Raw)
}

// handleProxy forwards /api/{path} to {path} on the box, keeping the
// method, query, body and end-to-end headers. The path is taken in its
// escaped form so %2F and %3F inside a segment reach the box intact.
func (h *handlers) handleProxy(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/")
	if path == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no API path given"})
		return
	}

	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}

		writeError(w, r, h.logger, fmt.Errorf("reading request body: %w", err))

		return
	}

	env, err := h.proxy.Do(r.Context(), freebox.Request{
		Method: r.Method,
		Path:   path,
		Body:   body,
		Header: forwardHeaders(r.Header),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeRaw(w, http.StatusOK, env.Raw)
}

// forwardHeaders copies in minus hop-by-hop headers and any header named
// in Connection.
func forwardHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		return nil
	}

	for _, v := range in.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}

	for _, name := range hopHeaders {
		out.Del(name)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
