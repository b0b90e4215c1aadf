package vpn

import (
	"errors"
	"sync"
	"time"
)

// Defaults for the per-instance reconnect guard.
const (
	DefaultCooldown    = 30 * time.Second
	DefaultMaxAttempts = 3
)

var (
	// ErrCooldownActive means a reconnect ran too recently.
	ErrCooldownActive = errors.New("vpn: reconnect cooldown active")
	// ErrMaxAttemptsReached means consecutive reconnects kept failing and
	// the guard refuses further attempts until one succeeds or the state
	// is reset.
	ErrMaxAttemptsReached = errors.New("vpn: max reconnect attempts reached")
)

// ReconnectState guards reconnect attempts for one tunnel. The intent is
// recorded under the lock before any network I/O happens, so concurrent
// callers cannot double-trigger a reconnect; the I/O itself runs unlocked.
type ReconnectState struct {
	mu          sync.Mutex
	attempts    int
	lastAttempt time.Time

	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewReconnectState builds a guard. Non-positive arguments fall back to the
// defaults.
func NewReconnectState(cooldown time.Duration, maxAttempts int) *ReconnectState {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &ReconnectState{cooldown: cooldown, maxAttempts: maxAttempts, now: time.Now}
}

// Begin records the intent to reconnect and returns the 1-based attempt
// number. It fails with ErrCooldownActive or ErrMaxAttemptsReached without
// mutating state.
func (s *ReconnectState) Begin() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.cooldown {
		return 0, ErrCooldownActive
	}
	if s.attempts >= s.maxAttempts {
		return 0, ErrMaxAttemptsReached
	}
	s.attempts++
	s.lastAttempt = now
	return s.attempts, nil
}

// SetPolicy adjusts the cooldown and attempt ceiling. Non-positive values
// keep the current setting.
func (s *ReconnectState) SetPolicy(cooldown time.Duration, maxAttempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cooldown > 0 {
		s.cooldown = cooldown
	}
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
}

// Succeed clears the attempt counter. Only success resets it; failed
// attempts keep counting toward the ceiling.
func (s *ReconnectState) Succeed() {
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
}

// Reset clears both the counter and the cooldown stamp. Operator escape
// hatch for a tunnel that is known-good again.
func (s *ReconnectState) Reset() {
	s.mu.Lock()
	s.attempts = 0
	s.lastAttempt = time.Time{}
	s.mu.Unlock()
}

// Attempts reports the current consecutive failure count.
func (s *ReconnectState) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
