package freebox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/fbx-gateway/internal/errors"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSessionTTL is how long a session token is trusted after it
	// was issued. The box expires idle sessions on its own schedule; a
	// token older than this is treated as unset.
	DefaultSessionTTL = 5 * time.Minute

	// maxLoginAttempts bounds the login loop: one attempt plus three retries.
	maxLoginAttempts = 4

	// loginTimeout caps a shared login once it no longer follows the
	// context of the caller that started it. Each attempt is two calls.
	loginTimeout = 2 * maxLoginAttempts * httpClientTimeout
)

// SessionConfig holds the dependencies for NewSession.
type SessionConfig struct {
	Client      *Client
	Credentials CredentialSource
	AppID       string
	TTL         time.Duration
	Logger      *slog.Logger
}

// Session owns the login state shared by every inbound request: the
// current challenge, the session token and the time it was issued.
// Logins triggered concurrently collapse into one.
type Session struct {
	client *Client
	creds  CredentialSource
	appID  string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	challenge string
	token     string
	issuedAt  time.Time

	logins singleflight.Group
}

// NewSession creates a Session with no token and no challenge.
func NewSession(cfg SessionConfig) *Session {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		client: cfg.Client,
		creds:  cfg.Credentials,
		appID:  cfg.AppID,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Ensure makes sure a fresh session token is held, logging in if the
// token is missing or older than the TTL. It makes no downstream call
// when the token is still fresh.
//
// Callers that arrive while a login is running wait for it instead of
// starting their own. The shared login keeps the values of the caller
// that started it but not its cancellation, so one caller giving up does
// not fail the others; it is bounded by loginTimeout instead. A caller
// whose own context ends returns early.
func (s *Session) Ensure(ctx context.Context) error {
	if s.fresh() {
		return nil
	}

	ch := s.logins.DoChan("login", func() (any, error) {
		if s.fresh() {
			return nil, nil
		}

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()

		return nil, s.login(lctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate drops the challenge and the session token so the next
// Ensure performs a full login.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenge = ""
	s.token = ""
	s.issuedAt = time.Time{}
}

// ForceLogin discards the current session and logs in again.
func (s *Session) ForceLogin(ctx context.Context) error {
	s.Invalidate()
	return s.Ensure(ctx)
}

// Renew is ForceLogin for a token the box just rejected. The session is
// only discarded if stale is still the current token, so concurrent
// requests rejected with the same token share a single new login.
func (s *Session) Renew(ctx context.Context, stale string) error {
	s.mu.Lock()
	if s.token == stale {
		s.challenge = ""
		s.token = ""
		s.issuedAt = time.Time{}
	}
	s.mu.Unlock()

	return s.Ensure(ctx)
}

// Token returns the held session token, or "" if none.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

// Challenge returns the held login challenge, or "" if none.
func (s *Session) Challenge() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.challenge
}

// SetChallenge records a challenge handed out by the box.
func (s *Session) SetChallenge(challenge string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenge = challenge
}

// ClearChallenge forgets the held challenge so the next login fetches a
// new one.
func (s *Session) ClearChallenge() {
	s.SetChallenge("")
}

func (s *Session) fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token != "" && s.now().Sub(s.issuedAt) <= s.ttl
}

// login runs the challenge/password exchange, retrying the whole
// sequence up to maxLoginAttempts times. A missing app token fails
// immediately without touching the box.
func (s *Session) login(ctx context.Context) error {
	appToken, err := s.creds.Load()
	if err != nil {
		return fmt.Errorf("loading app token: %w", err)
	}

	if appToken == "" {
		return apperrors.Unauthenticated()
	}

	s.logger.Info("no valid session, logging in")

	var lastErr error

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, err := s.openSession(ctx, appToken)
		if err == nil {
			s.mu.Lock()
			s.token = token
			s.issuedAt = s.now()
			s.mu.Unlock()

			s.logger.Info("session opened", slog.Int("attempt", attempt))

			return nil
		}

		lastErr = err
		s.ClearChallenge()

		s.logger.Warn("login attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	return apperrors.LoginFailed(maxLoginAttempts, lastErr)
}

// openSession performs one login attempt and returns the new session
// token. The challenge is fetched only when none is held.
func (s *Session) openSession(ctx context.Context, appToken string) (string, error) {
	challenge := s.Challenge()
	if challenge == "" {
		env, status, err := s.client.send(ctx, call{
			method: http.MethodGet,
			path:   s.client.loginPath(""),
		})
		if err != nil {
			return "", fmt.Errorf("fetching challenge: %w", err)
		}

		if !env.Success {
			return "", apperrors.Downstream(status, env.ErrorCode, env.Msg, env.Raw)
		}

		challenge = env.Challenge()
		if challenge == "" {
			return "", fmt.Errorf("login endpoint returned no challenge")
		}

		s.SetChallenge(challenge)
	}

	body, err := json.Marshal(sessionRequest{
		AppID:    s.appID,
		Password: DerivePassword(challenge, appToken),
	})
	if err != nil {
		return "", fmt.Errorf("marshalling session request: %w", err)
	}

	env, status, err := s.client.send(ctx, call{
		method: http.MethodPost,
		path:   s.client.loginPath("session/"),
		body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("opening session: %w", err)
	}

	if !env.Success {
		return "", apperrors.Downstream(status, env.ErrorCode, env.Msg, env.Raw)
	}

	token := env.resultString("session_token")
	if token == "" {
		return "", fmt.Errorf("session response carried no session_token")
	}

	return token, nil
}
