// Package session keeps per-user conversational state in memory.
package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

// Slot names what the conversation is waiting for.
type Slot string

const (
	SlotNone     Slot = ""
	SlotToken    Slot = "token"
	SlotReceiver Slot = "receiver"
	SlotAmount   Slot = "amount"
	SlotAuth     Slot = "auth"
)

// Turn holds the transient slots of the current conversational turn.
type Turn struct {
	Intent   domain.Intent
	Tokens   []string
	Receiver string
	Amount   decimal.NullDecimal
	Awaiting Slot
}

// Empty reports whether no slot is filled.
func (t Turn) Empty() bool {
	return t.Intent == "" && len(t.Tokens) == 0 && t.Receiver == "" && !t.Amount.Valid
}

func (t Turn) clone() Turn {
	t.Tokens = append([]string(nil), t.Tokens...)
	return t
}

// Session is one user's state. Auth and its expiry survive a turn reset,
// Turn does not.
type Session struct {
	Auth      domain.AuthState
	ExpiresAt time.Time

	TopTokens    []domain.TokenRecord
	TopExpiresAt time.Time

	InviteLink string
	Turn       Turn
}

// Authenticated returns the cached auth result, if any.
func (s Session) Authenticated() (domain.AuthResult, bool) {
	if a, ok := s.Auth.(domain.Authenticated); ok {
		return a.Result, true
	}
	return domain.AuthResult{}, false
}

func (s Session) clone() Session {
	s.TopTokens = append([]domain.TokenRecord(nil), s.TopTokens...)
	s.Turn = s.Turn.clone()
	return s
}

// Store is the session storage contract.
type Store interface {
	Get(userID int64) (Session, bool)
	Put(userID int64, s Session)
	// Update runs fn under the store lock and returns the stored result.
	// fn must not block.
	Update(userID int64, fn func(*Session)) Session
	// PutAuth writes an auth state respecting precedence and reports whether it was stored.
	PutAuth(userID int64, state domain.AuthState, ttl time.Duration) bool
	ClearTransient(userID int64)
	Logout(userID int64)
	Len() int
}

// Option configures a Memory store.
type Option func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// Memory is a mutex guarded map. Expired entries are dropped lazily on access.
type Memory struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{sessions: make(map[int64]*Session), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns a copy of the session after applying expiry.
func (m *Memory) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load(userID)
	if s == nil {
		return Session{}, false
	}
	return s.clone(), true
}

func (m *Memory) Put(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, failed := s.Auth.(domain.AuthFailed); failed {
		s.Auth = nil
		s.ExpiresAt = time.Time{}
	}
	cp := s.clone()
	m.sessions[userID] = &cp
}

func (m *Memory) Update(userID int64, fn func(*Session)) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.load(userID)
	if s == nil {
		s = &Session{}
		m.sessions[userID] = s
	}
	fn(s)
	if _, failed := s.Auth.(domain.AuthFailed); failed {
		s.Auth = nil
		s.ExpiresAt = time.Time{}
	}
	return s.clone()
}

func (m *Memory) PutAuth(userID int64, state domain.AuthState, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.load(userID)
	if !canReplace(s, state) {
		return false
	}
	if s == nil {
		s = &Session{}
		m.sessions[userID] = s
	}
	s.Auth = state
	s.ExpiresAt = m.now().Add(ttl)
	return true
}

// canReplace: AuthFailed never lands; an authenticated entry is only replaced
// once it has expired, which load has already taken care of.
func canReplace(cur *Session, next domain.AuthState) bool {
	switch next.(type) {
	case domain.Authenticated, domain.LoginRequired:
	default:
		return false
	}
	if cur == nil || cur.Auth == nil {
		return true
	}
	_, pending := cur.Auth.(domain.LoginRequired)
	return pending
}

// ClearTransient resets the turn and keeps auth, top tokens and the invite link.
func (m *Memory) ClearTransient(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.load(userID); s != nil {
		s.Turn = Turn{}
	}
}

// Logout drops everything known about the user.
func (m *Memory) Logout(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len counts stored sessions, including ones not yet lazily expired.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// load must be called with mu held.
func (m *Memory) load(userID int64) *Session {
	s, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	now := m.now()
	if s.Auth != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		s.Auth = nil
		s.ExpiresAt = time.Time{}
	}
	if len(s.TopTokens) > 0 && !s.TopExpiresAt.IsZero() && !now.Before(s.TopExpiresAt) {
		s.TopTokens = nil
		s.TopExpiresAt = time.Time{}
	}
	return s
}
