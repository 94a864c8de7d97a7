package freebox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/alexjbarnes/fbx-gateway/internal/errors"
)

var allowedMethods = map[string]string{
	http.MethodGet:    http.MethodGet,
	http.MethodPost:   http.MethodPost,
	http.MethodPatch:  http.MethodPatch,
	http.MethodPut:    http.MethodPut,
	http.MethodDelete: http.MethodDelete,
}

// Gateway forwards requests to the box with the session token attached.
// A request rejected with invalid_token triggers one new login and one
// retry; every other failure is returned to the caller.
type Gateway struct {
	client  *Client
	session *Session
	logger  *slog.Logger
}

// NewGateway creates a Gateway sharing session with every caller.
func NewGateway(client *Client, session *Session, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		client:  client,
		session: session,
		logger:  logger,
	}
}

// Call forwards req and returns the envelope's result payload.
func (g *Gateway) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	env, err := g.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return env.Result, nil
}

// Do forwards req and returns the full envelope. Any returned error
// leaves the session without a challenge, so the next login fetches a
// new one.
func (g *Gateway) Do(ctx context.Context, req Request) (env *Envelope, err error) {
	method, ok := allowedMethods[strings.ToUpper(req.Method)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMethod, req.Method)
	}

	if len(req.Body) > 0 && !json.Valid(req.Body) {
		return nil, apperrors.ErrInvalidBody
	}

	defer func() {
		if err != nil {
			g.session.ClearChallenge()
		}
	}()

	if err := g.session.Ensure(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		token := g.session.Token()

		env, status, err := g.client.send(ctx, call{
			method: method,
			path:   req.Path,
			body:   req.Body,
			token:  token,
			header: req.Header,
		})
		if err != nil {
			return nil, err
		}

		if !env.Success {
			if env.ErrorCode == ErrorCodeInvalidToken && attempt == 0 {
				g.logger.Info("session token rejected, logging in again",
					slog.String("path", req.Path),
				)

				if err := g.session.Renew(ctx, token); err != nil {
					return nil, err
				}

				continue
			}

			return nil, apperrors.Downstream(status, env.ErrorCode, env.Msg, env.Raw)
		}

		if challenge := env.Challenge(); challenge != "" {
			g.session.SetChallenge(challenge)
		}

		return env, nil
	}
}
