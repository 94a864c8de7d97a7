package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/alexjbarnes/fbx-gateway/internal/errors"
	"github.com/alexjbarnes/fbx-gateway/internal/logging"
)

// errorResponse is the body of every failed request. Response carries
// the box's envelope verbatim when the failure came from the box.
type errorResponse struct {
	Error    string          `json:"error"`
	Response json.RawMessage `json:"response,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRaw writes an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// statusFor maps err to the status the client sees. Deadlines expire
// either on the pairing timeout or the box client's own timeout.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	return apperrors.StatusOf(err)
}

func writeError(w http.ResponseWriter, r *http.Request, fallback *slog.Logger, err error) {
	status := statusFor(err)
	logger := logging.FromContext(r.Context(), fallback)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.Int("status", status),
			slog.String("kind", apperrors.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Warn("request rejected",
			slog.Int("status", status),
			slog.String("kind", apperrors.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, errorResponse{
		Error:    err.Error(),
		Response: apperrors.EnvelopeOf(err),
	})
}
