package auth

import (
	"sync"
	"time"
)

// RevocationList holds the ids of logged-out tokens until they would have
// expired anyway. One list is shared by the login handlers and the auth
// middleware for the life of the process.
type RevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time // token id -> token expiry
	now     func() time.Time
}

func NewRevocationList() *RevocationList {
	return &RevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke blacklists a token id until expiresAt.
func (l *RevocationList) Revoke(tokenID string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenID] = expiresAt
	l.pruneLocked()
}

func (l *RevocationList) IsRevoked(tokenID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.entries[tokenID]
	if !ok {
		return false
	}
	if !l.now().Before(expiresAt) {
		delete(l.entries, tokenID)
		return false
	}
	return true
}

// Len returns the number of live entries.
func (l *RevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	return len(l.entries)
}

func (l *RevocationList) pruneLocked() {
	now := l.now()
	for id, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, id)
		}
	}
}
