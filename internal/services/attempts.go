package services

import (
	"strings"
	"sync"
)

// LoginAttempts counts consecutive failed logins per username. Once a
// username reaches the limit every attempt is rejected until Reset is
// called. Counts never decay and live for the life of the process.
//
// Password checks run between Begin and one of Fail, Succeed or Release.
// Attempts in flight count against the limit, so concurrent logins for one
// username can never check more than limit passwords.
type LoginAttempts struct {
	mu       sync.Mutex
	limit    int
	failures map[string]int
	pending  map[string]int
}

func NewLoginAttempts(limit int) *LoginAttempts {
	if limit < 1 {
		limit = 1
	}
	return &LoginAttempts{limit: limit, failures: make(map[string]int), pending: make(map[string]int)}
}

// Begin reserves an attempt for username. It returns false, reserving
// nothing, when the recorded failures plus the attempts in flight have
// reached the limit.
func (a *LoginAttempts) Begin(username string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := attemptKey(username)
	if a.failures[key]+a.pending[key] >= a.limit {
		return false
	}
	a.pending[key]++
	return true
}

// Locked reports whether username has reached the failure limit.
func (a *LoginAttempts) Locked(username string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures[attemptKey(username)] >= a.limit
}

// Fail records a failed attempt, settling a reservation if one is held,
// and returns the new consecutive count.
func (a *LoginAttempts) Fail(username string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := attemptKey(username)
	a.settle(key)
	a.failures[key]++
	return a.failures[key]
}

// Succeed settles a reservation and clears the failure count.
func (a *LoginAttempts) Succeed(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := attemptKey(username)
	a.settle(key)
	delete(a.failures, key)
}

// Release settles a reservation without recording an outcome.
func (a *LoginAttempts) Release(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settle(attemptKey(username))
}

// Reset clears the failure count for username.
func (a *LoginAttempts) Reset(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.failures, attemptKey(username))
}

// Failures returns the current consecutive count for username.
func (a *LoginAttempts) Failures(username string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures[attemptKey(username)]
}

func (a *LoginAttempts) settle(key string) {
	switch n := a.pending[key]; {
	case n > 1:
		a.pending[key] = n - 1
	case n == 1:
		delete(a.pending, key)
	}
}

func attemptKey(username string) string {
	return strings.TrimSpace(username)
}
