package auth

import (
	"sync"
	"time"
)

// Session is one signed-in user context.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// SessionState holds the current session and notifies watchers whenever it
// changes. It replaces ambient auth globals: whoever needs the session gets
// handed this object.
type SessionState struct {
	mu       sync.Mutex
	current  *Session
	nextID   int
	watchers map[int]func(*Session)
}

// NewSessionState starts signed out.
func NewSessionState() *SessionState {
	return &SessionState{watchers: map[int]func(*Session){}}
}

// Current returns the active session, or nil when signed out.
func (s *SessionState) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch registers fn, fires it immediately with the current value, and
// returns the unsubscribe function. fn also runs on every later change,
// with nil meaning signed out.
func (s *SessionState) Watch(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Set publishes sess as the current session and notifies watchers. The
// auth client calls this on sign-in and sign-out; nil means signed out.
func (s *SessionState) Set(sess *Session) {
	s.mu.Lock()
	s.current = sess
	fns := make([]func(*Session), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
