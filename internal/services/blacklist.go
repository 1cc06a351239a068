package services

import (
	"sync"
	"time"
)

// TokenBlacklist holds revoked tokens until they would have expired anyway.
type TokenBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewTokenBlacklist(now func() time.Time) *TokenBlacklist {
	if now == nil {
		now = time.Now
	}
	return &TokenBlacklist{revoked: make(map[string]time.Time), now: now}
}

// Add revokes token until expiresAt.
func (b *TokenBlacklist) Add(token string, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	b.revoked[token] = expiresAt
}

// Contains reports whether token has been revoked.
func (b *TokenBlacklist) Contains(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[token]
	return ok
}

// Len returns the number of tracked tokens.
func (b *TokenBlacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.revoked)
}

func (b *TokenBlacklist) pruneLocked() {
	now := b.now()
	for token, expiresAt := range b.revoked {
		if !expiresAt.After(now) {
			delete(b.revoked, token)
		}
	}
}
