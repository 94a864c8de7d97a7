package freebox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/alexjbarnes/fbx-gateway/internal/errors"
	"github.com/alexjbarnes/fbx-gateway/internal/state"
	"golang.org/x/sync/singleflight"
)

// DefaultPollInterval is the delay between authorization status polls.
const DefaultPollInterval = time.Second

// PairerConfig holds the dependencies for NewPairer. Journal is optional.
type PairerConfig struct {
	Client       *Client
	Credentials  CredentialSink
	Journal      PairingJournal
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Pairer registers the gateway as an application on the box. The user
// has to approve the request on the box's front panel; until then the
// status endpoint reports pending.
type Pairer struct {
	client   *Client
	creds    CredentialSink
	journal  PairingJournal
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	flights singleflight.Group
}

// NewPairer creates a Pairer.
func NewPairer(cfg PairerConfig) *Pairer {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pairer{
		client:   cfg.Client,
		creds:    cfg.Credentials,
		journal:  cfg.Journal,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Authorize requests pairing for info and polls until the user answers
// on the box or ctx ends. On granted the app token is saved. Any other
// final status fails with an authorization-refused error and nothing is
// saved. A request left pending by an earlier run is resumed instead of
// opening a new one.
//
// Concurrent calls for the same app share one request. If the caller
// running it gives up, a waiter whose context is still live takes over
// and resumes the journaled request.
func (p *Pairer) Authorize(ctx context.Context, info AppInfo) error {
	for {
		var led bool

		ch := p.flights.DoChan(info.AppID, func() (any, error) {
			led = true
			return nil, p.authorize(ctx, info)
		})

		select {
		case res := <-ch:
			if !led && ctx.Err() == nil && isContextError(res.Err) {
				continue
			}

			return res.Err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Pairer) authorize(ctx context.Context, info AppInfo) error {
	pending := p.resumable(info.AppID)
	if pending == nil {
		var err error

		pending, err = p.request(ctx, info)
		if err != nil {
			return err
		}
	} else {
		p.logger.Info("resuming pending authorization",
			slog.String("track_id", pending.TrackID),
			slog.Time("started_at", pending.StartedAt),
		)
	}

	status, err := p.poll(ctx, pending.TrackID)
	if err != nil {
		return err
	}

	if status != StatusGranted {
		p.forget()
		p.logger.Warn("authorization refused", slog.String("status", status))

		return apperrors.AuthorizationRefused(status)
	}

	if err := p.creds.Save(pending.AppToken); err != nil {
		return fmt.Errorf("saving app token: %w", err)
	}

	p.forget()
	p.logger.Info("authorization granted", slog.String("app_id", info.AppID))

	return nil
}

// request opens a new pairing request and journals it.
func (p *Pairer) request(ctx context.Context, info AppInfo) (*state.PendingAuthorization, error) {
	body, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshalling app info: %w", err)
	}

	env, status, err := p.client.send(ctx, call{
		method: http.MethodPost,
		path:   p.client.loginPath("authorize/"),
		body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting authorization: %w", err)
	}

	if !env.Success {
		return nil, apperrors.Downstream(status, env.ErrorCode, env.Msg, env.Raw)
	}

	pa := state.PendingAuthorization{
		AppID:     info.AppID,
		TrackID:   env.resultString("track_id"),
		AppToken:  env.resultString("app_token"),
		StartedAt: p.now(),
	}

	if pa.TrackID == "" || pa.AppToken == "" {
		return nil, fmt.Errorf("authorize response missing track_id or app_token")
	}

	p.logger.Info("authorization requested, approve it on the box",
		slog.String("track_id", pa.TrackID),
	)

	if p.journal != nil {
		if err := p.journal.SetPendingAuthorization(pa); err != nil {
			p.logger.Warn("failed to journal pending authorization", slog.String("error", err.Error()))
		}
	}

	return &pa, nil
}

// poll queries the status endpoint until it reports something other
// than pending, and returns that status.
func (p *Pairer) poll(ctx context.Context, trackID string) (string, error) {
	path := p.client.loginPath("authorize/" + trackID)

	for polls := 1; ; polls++ {
		env, status, err := p.client.send(ctx, call{
			method: http.MethodGet,
			path:   path,
		})
		if err != nil {
			return "", fmt.Errorf("polling authorization status: %w", err)
		}

		if !env.Success {
			// The box no longer knows this request; a journaled copy
			// would fail the same way on every resume.
			p.forget()
			return "", apperrors.Downstream(status, env.ErrorCode, env.Msg, env.Raw)
		}

		st := env.resultString("status")
		p.logger.Debug("authorization status",
			slog.String("status", st),
			slog.Int("poll", polls),
		)

		if st != StatusPending {
			return st, nil
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// resumable returns the journaled request for appID, if any. Journal
// read failures are logged and treated as no journal.
func (p *Pairer) resumable(appID string) *state.PendingAuthorization {
	if p.journal == nil {
		return nil
	}

	pa, err := p.journal.PendingAuthorization()
	if err != nil {
		p.logger.Warn("failed to read pending authorization", slog.String("error", err.Error()))
		return nil
	}

	if pa == nil {
		return nil
	}

	if pa.AppID != appID || pa.TrackID == "" || pa.AppToken == "" {
		p.forget()
		return nil
	}

	return pa
}

func (p *Pairer) forget() {
	if p.journal == nil {
		return
	}

	if err := p.journal.ClearPendingAuthorization(); err != nil {
		p.logger.Warn("failed to clear pending authorization", slog.String("error", err.Error()))
	}
}
