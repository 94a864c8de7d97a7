package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// The pending record carries a provisional app token.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	pairingBucket = []byte("pairing")
	pendingKey    = []byte("pending")
)

// PendingAuthorization is a pairing request the box has accepted but
// the user has not yet answered. It is kept so that a gateway restarted
// mid-pairing resumes polling the same request.
type PendingAuthorization struct {
	AppID     string    `json:"app_id"`
	TrackID   string    `json:"track_id"`
	AppToken  string    `json:"app_token"`
	StartedAt time.Time `json:"started_at"`
}

// State wraps a bbolt database for persistent gateway state.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pairingBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// PendingAuthorization returns the journaled pairing request, or nil.
func (s *State) PendingAuthorization() (*PendingAuthorization, error) {
	var pa *PendingAuthorization

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(pairingBucket).Get(pendingKey)
		if v == nil {
			return nil
		}

		pa = &PendingAuthorization{}

		return json.Unmarshal(v, pa)
	})
	if err != nil {
		return nil, fmt.Errorf("reading pending authorization: %w", err)
	}

	return pa, nil
}

// SetPendingAuthorization journals a pairing request, replacing any
// previous one.
func (s *State) SetPendingAuthorization(pa PendingAuthorization) error {
	data, err := json.Marshal(pa)
	if err != nil {
		return fmt.Errorf("encoding pending authorization: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pairingBucket).Put(pendingKey, data)
	})
}

// ClearPendingAuthorization removes the journaled pairing request.
// Clearing when nothing is journaled is a no-op.
func (s *State) ClearPendingAuthorization() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pairingBucket).Delete(pendingKey)
	})
}
