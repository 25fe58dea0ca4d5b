// Package keyring stores one derived key in the OS credential store
// (Secret Service, macOS Keychain, Windows Credential Manager). The
// telemetry core treats the backend as a pluggable sink: every access
// is audited and key bytes only exist outside the store sealed in a
// secure enclave.
package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/secure"
)

// ErrKeyNotFound is returned when the named key is absent from the OS
// credential store.
var ErrKeyNotFound = errors.New("key not found in OS keyring")

// Store wraps the OS credential store for derived-key material.
type Store struct {
	service  string
	auditLog *audit.Logger
}

// NewStore creates a store under the given service namespace. The
// audit logger may be nil in contexts without a pipeline (tests).
func NewStore(service string, auditLog *audit.Logger) *Store {
	if service == "" {
		service = "vaultwatch"
	}
	return &Store{service: service, auditLog: auditLog}
}

// Put writes the key under name and wipes the caller's copy on
// success, so exactly one copy of the material remains: the one held
// by the OS store.
func (s *Store) Put(name string, key *secure.SecureString) error {
	raw, err := key.Bytes()
	if err != nil {
		return err
	}
	defer zero(raw)

	err = gokeyring.Set(s.service, name, string(raw))
	s.logAccess("store", name, err)
	if err != nil {
		return fmt.Errorf("failed to store key in OS keyring: %w", err)
	}

	key.Wipe()
	return nil
}

// Get reads the key under name, sealed into an enclave. The plaintext
// returned by the OS API is zeroed before this returns.
func (s *Store) Get(name string) (*secure.Enclave, error) {
	value, err := gokeyring.Get(s.service, name)
	s.logAccess("retrieve", name, err)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read key from OS keyring: %w", err)
	}

	raw := []byte(value)
	enclave := secure.NewEnclave(raw)
	zero(raw)
	return enclave, nil
}

// Delete removes the key under name.
func (s *Store) Delete(name string) error {
	err := gokeyring.Delete(s.service, name)
	s.logAccess("delete", name, err)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key from OS keyring: %w", err)
	}
	return nil
}

// logAccess records the keyring operation in the audit stream. The key
// name is a label, never material.
func (s *Store) logAccess(operation, name string, opErr error) {
	if s.auditLog == nil {
		return
	}
	level := audit.LevelLow
	outcome := "ok"
	if opErr != nil {
		level = audit.LevelMedium
		outcome = "error"
	}
	s.auditLog.LogEvent(audit.EventKeyringAccess, level,
		fmt.Sprintf("keyring %s for key %q (%s)", operation, name, outcome),
		audit.WithResource(name),
		audit.WithDetail("operation", operation),
		audit.WithDetail("outcome", outcome),
	)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
