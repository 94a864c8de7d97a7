package freebox

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

// Error codes the box reports in the envelope's error_code field.
const (
	ErrorCodeInvalidToken = "invalid_token"
)

// Pairing statuses reported by the authorize status endpoint.
const (
	StatusPending = "pending"
	StatusGranted = "granted"
	StatusDenied  = "denied"
	StatusTimeout = "timeout"
	StatusUnknown = "unknown"
)

// AppInfo identifies the gateway to the box when pairing.
type AppInfo struct {
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	DeviceName string `json:"device_name"`
}

// Envelope is the response wrapper every box endpoint returns. Result is
// kept as raw JSON; the gateway never interprets proxied payloads.
type Envelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Msg       string          `json:"msg,omitempty"`

	// Raw is the response body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Challenge returns result.challenge, or "" if the envelope carries none.
func (e *Envelope) Challenge() string {
	return e.resultString("challenge")
}

func (e *Envelope) resultString(key string) string {
	if len(e.Result) == 0 {
		return ""
	}

	return gjson.GetBytes(e.Result, key).String()
}

// parseEnvelope reads the envelope fields out of body without decoding
// the result payload.
func parseEnvelope(body []byte) (*Envelope, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, false
	}

	env := &Envelope{
		Success:   root.Get("success").Bool(),
		ErrorCode: root.Get("error_code").String(),
		Msg:       root.Get("msg").String(),
		Raw:       json.RawMessage(body),
	}

	if result := root.Get("result"); result.Exists() {
		env.Result = json.RawMessage(result.Raw)
	}

	return env, true
}

// Request is one call to forward to the box.
type Request struct {
	// Method is one of GET, POST, PATCH, PUT, DELETE (case-insensitive).
	Method string

	// Path is relative to the API root, e.g. "v8/system/".
	Path string

	// Body is sent verbatim when non-empty. No body is sent otherwise.
	Body json.RawMessage

	// Header is merged over the gateway's own headers.
	Header http.Header
}

type sessionRequest struct {
	AppID    string `json:"app_id"`
	Password string `json:"password"`
}
