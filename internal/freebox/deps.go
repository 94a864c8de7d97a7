package freebox

import "github.com/alexjbarnes/fbx-gateway/internal/state"

//go:generate mockgen -source=deps.go -destination=mock_deps_test.go -package=freebox

// CredentialSource yields the app token used to log in. An empty token
// with a nil error means the gateway has not been paired.
type CredentialSource interface {
	Load() (string, error)
}

// CredentialSink persists the app token granted by pairing.
type CredentialSink interface {
	Save(token string) error
}

// PairingJournal remembers an unanswered pairing request across restarts.
type PairingJournal interface {
	PendingAuthorization() (*state.PendingAuthorization, error)
	SetPendingAuthorization(pa state.PendingAuthorization) error
	ClearPendingAuthorization() error
}
