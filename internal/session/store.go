package session

import (
	"strings"
	"sync"
)

// CredentialKey is the fixed key the credential is stored under.
const CredentialKey = "auth_token"

// Store persists at most one bearer credential.
//
// Implementations must tolerate unavailable storage: a read that fails
// reports the credential as absent rather than returning an error.
type Store interface {
	// Credential returns the stored credential and whether one is present.
	Credential() (string, bool)
	// SetCredential replaces the stored credential.
	SetCredential(token string) error
	// ClearCredential removes the stored credential. Clearing an absent
	// credential is not an error.
	ClearCredential() error
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Credential() (string, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemoryStore) SetCredential(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
	return nil
}

func (m *MemoryStore) ClearCredential() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
