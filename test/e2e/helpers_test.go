package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexjbarnes/fbx-gateway/internal/credentials"
	"github.com/alexjbarnes/fbx-gateway/internal/freebox"
	"github.com/alexjbarnes/fbx-gateway/internal/server"
	"github.com/alexjbarnes/fbx-gateway/internal/state"
	"github.com/stretchr/testify/require"
)

const (
	testAppID    = "fr.freebox_gateway"
	testAppToken = "e2e-app-token"
	testTrackID  = 17
)

// box is a stand-in for the Freebox API: login, pairing, and a couple
// of authenticated endpoints. Pairing stays pending until approve.
type box struct {
	srv *httptest.Server

	mu         sync.Mutex
	challenge  int
	sessions   int
	valid      map[string]bool
	approved   bool
	authorizes int
	hits       map[string]int
}

func newBox(t *testing.T) *box {
	t.Helper()

	b := &box{
		valid: make(map[string]bool),
		hits:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v8/login/{$}", b.handleChallenge)
	mux.HandleFunc("POST /api/v8/login/session/", b.handleSession)
	mux.HandleFunc("POST /api/v8/login/authorize/", b.handleAuthorize)
	mux.HandleFunc(fmt.Sprintf("GET /api/v8/login/authorize/%d", testTrackID), b.handleAuthorizeStatus)
	mux.HandleFunc("/api/v8/system/", b.authenticated(func(r *http.Request) any {
		return map[string]any{"firmware_version": "4.8.9", "method": r.Method}
	}))
	mux.HandleFunc("GET /api/v6/player/{id}/api/v6/status/", b.authenticated(func(r *http.Request) any {
		return map[string]any{"player_id": r.PathValue("id"), "power_state": "running"}
	}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusNotFound, map[string]any{
			"success": false, "error_code": "invalid_request", "msg": "no such endpoint",
		})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)

	return b
}

func (b *box) currentChallenge() string {
	return fmt.Sprintf("challenge-%d", b.challenge)
}

func (b *box) handleChallenge(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.challenge++
	c := b.currentChallenge()
	b.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{"challenge": c}})
}

func (b *box) handleSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID    string `json:"app_id"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if req.AppID != testAppID || req.Password != freebox.DerivePassword(b.currentChallenge(), testAppToken) {
		reply(w, http.StatusForbidden, map[string]any{"success": false, "error_code": "invalid_password"})
		return
	}

	b.sessions++
	token := fmt.Sprintf("session-%d", b.sessions)
	b.valid[token] = true

	reply(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{"session_token": token}})
}

func (b *box) handleAuthorize(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.authorizes++
	b.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  map[string]any{"app_token": testAppToken, "track_id": testTrackID},
	})
}

func (b *box) handleAuthorizeStatus(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	status := freebox.StatusPending
	if b.approved {
		status = freebox.StatusGranted
	}
	b.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{"status": status}})
}

func (b *box) authenticated(result func(*http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		ok := b.valid[r.Header.Get(freebox.AuthHeader)]
		b.mu.Unlock()

		if !ok {
			reply(w, http.StatusForbidden, map[string]any{
				"success": false, "error_code": freebox.ErrorCodeInvalidToken, "msg": "session expired",
			})

			return
		}

		reply(w, http.StatusOK, map[string]any{"success": true, "result": result(r)})
	}
}

func (b *box) approve() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approved = true
}

// expireSessions drops every issued session token, as the box does
// after a period of inactivity.
func (b *box) expireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.valid)
}

func (b *box) logins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

func (b *box) authorizeRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authorizes
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// harness is one running gateway: the HTTP front end, the session
// against box, the token file and the pairing journal in dir.
type harness struct {
	URL    string
	Dir    string
	Store  *credentials.Store
	Client *http.Client

	ts    *httptest.Server
	state *state.State
	once  sync.Once
}

type harnessOption func(*server.MuxConfig)

func withPairingTimeout(d time.Duration) harnessOption {
	return func(c *server.MuxConfig) { c.PairingTimeout = d }
}

// newHarness starts a gateway whose config directory is dir. Starting a
// second harness on the same dir after stop models a restart.
func newHarness(t *testing.T, b *box, dir string, opts ...harnessOption) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	st, err := state.LoadAt(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	store := credentials.NewStore(filepath.Join(dir, "token.key"))

	client := freebox.NewClient(freebox.ClientConfig{
		HTTPClient: b.srv.Client(),
		BaseURL:    b.srv.URL + "/api",
		Logger:     logger,
	})
	session := freebox.NewSession(freebox.SessionConfig{
		Client:      client,
		Credentials: store,
		AppID:       testAppID,
		Logger:      logger,
	})
	pairer := freebox.NewPairer(freebox.PairerConfig{
		Client:       client,
		Credentials:  store,
		Journal:      st,
		PollInterval: 5 * time.Millisecond,
		Logger:       logger,
	})

	cfg := server.MuxConfig{
		Proxy:   freebox.NewGateway(client, session, logger),
		Pairing: pairer,
		AppInfo: freebox.AppInfo{
			AppID:      testAppID,
			AppName:    "Freebox Gateway",
			AppVersion: "1.0.0",
			DeviceName: "e2e",
		},
		PairingTimeout: 5 * time.Second,
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ts := httptest.NewServer(server.NewMux(cfg))

	h := &harness{
		URL:    ts.URL,
		Dir:    dir,
		Store:  store,
		Client: ts.Client(),
		ts:     ts,
		state:  st,
	}
	t.Cleanup(h.stop)

	return h
}

func (h *harness) stop() {
	h.once.Do(func() {
		h.ts.Close()
		h.state.Close()
	})
}

func (h *harness) do(t *testing.T, method, path string, body []byte) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, h.URL+path, r)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

// pair registers the gateway, approving on the box once the first
// status poll has been answered.
func (h *harness) pair(t *testing.T, b *box) {
	t.Helper()

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.approve()
	}()

	resp, body := h.do(t, http.MethodPost, "/register", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}
