package conv

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyActive is returned by Begin when the chat has a session in progress.
	ErrAlreadyActive = errors.New("conv: conversation already active for chat")
	// ErrNoSession is returned by Advance when the chat has no session.
	ErrNoSession = errors.New("conv: no active session for chat")
)

// Session is the state of one in-progress conversation for one chat. A chat
// has at most one session at a time; an absent session means no conversation
// is in progress.
type Session struct {
	ChatID    int64
	Kind      Kind
	Step      State
	StartedAt time.Time

	scratch map[string]any
}

// Value returns the scratch entry stored under key.
func (s *Session) Value(key string) (any, bool) {
	v, ok := s.scratch[key]
	return v, ok
}

// Store owns all session records, keyed by chat id. Its operations are atomic
// with respect to each other; callers serialize whole-event handling per chat
// separately (see Engine).
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat if one is active.
func (st *Store) Get(chatID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	return s, ok
}

// Begin creates a fresh session at the given first step with empty scratch.
// It fails with ErrAlreadyActive when the chat already has a session.
func (st *Store) Begin(chatID int64, kind Kind, first State) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[chatID]; ok {
		return nil, ErrAlreadyActive
	}
	s := &Session{
		ChatID:    chatID,
		Kind:      kind,
		Step:      first,
		StartedAt: time.Now(),
		scratch:   make(map[string]any),
	}
	st.sessions[chatID] = s
	return s, nil
}

// Advance moves an existing session to the next step, merging patch into scratch.
func (st *Store) Advance(chatID int64, next State, patch map[string]any) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		return ErrNoSession
	}
	for k, v := range patch {
		s.scratch[k] = v
	}
	s.Step = next
	return nil
}

// End removes the session for a chat. It is idempotent: ending an absent
// session is not an error. The removed session is returned when present.
func (st *Store) End(chatID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if ok {
		delete(st.sessions, chatID)
	}
	return s, ok
}
