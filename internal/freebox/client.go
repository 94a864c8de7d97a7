package freebox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultBaseURL is the API root the box answers on inside the LAN.
	DefaultBaseURL = "http://mafreebox.freebox.fr/api"

	// DefaultAPIVersion is the version segment for login endpoints.
	DefaultAPIVersion = "v8"

	// AuthHeader carries the session token on authenticated calls.
	AuthHeader = "X-Fbx-App-Auth"

	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// by the API client when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving box from consuming unbounded memory.
	maxAPIResponseBytes = 4 * 1024 * 1024
)

// Client is the raw transport to the box API. It knows how to build
// URLs, attach headers and parse envelopes; it holds no session state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	logger     *slog.Logger
}

// ClientConfig holds the settings for NewClient. Zero values select
// the defaults.
type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	APIVersion string
	Logger     *slog.Logger
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so the session token never leaks
// to another host.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an API client. If cfg.HTTPClient is nil, a client
// with a 30-second timeout and same-host redirect policy is created.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: strings.Trim(apiVersion, "/"),
		logger:     logger,
	}
}

// loginPath returns the path of a login endpoint, e.g. "v8/login/session/".
func (c *Client) loginPath(suffix string) string {
	return c.apiVersion + "/login/" + suffix
}

// url joins the API root and a relative path with exactly one slash.
func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// call is one HTTP exchange with the box.
type call struct {
	method string
	path   string
	body   []byte
	token  string
	header http.Header
}

// send performs c and parses the response envelope. It returns the HTTP
// status alongside the envelope; a success=false envelope is not an
// error at this layer.
func (c *Client) send(ctx context.Context, cl call) (*Envelope, int, error) {
	var body io.Reader
	if len(cl.body) > 0 {
		body = bytes.NewReader(cl.body)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.url(cl.path), body)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if cl.token != "" {
		req.Header.Set(AuthHeader, cl.token)
	}

	for k, vs := range cl.header {
		req.Header.Del(k)

		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("box call",
		slog.String("method", cl.method),
		slog.String("path", cl.path),
		slog.Bool("authenticated", req.Header.Get(AuthHeader) != ""),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("sending request to %s: %w", cl.path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response from %s: %w", cl.path, err)
	}

	env, ok := parseEnvelope(respBody)
	if !ok {
		return nil, resp.StatusCode, fmt.Errorf("API %s returned status %d with a non-JSON body: %s",
			cl.path, resp.StatusCode, sanitizeResponseBody(respBody))
	}

	return env, resp.StatusCode, nil
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
