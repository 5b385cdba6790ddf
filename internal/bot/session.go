package bot

import (
	"sync"

	"github.com/avralex/tradebrief/pkg/models"
)

// State is the conversation state for one chat.
type State int

const (
	// StateTicker waits for an instrument symbol. Initial state.
	StateTicker State = iota
	// StateTimeframe waits for a chart timeframe token.
	StateTimeframe
	// StateContext waits for the user's free-text commentary.
	StateContext
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateTicker:
		return "awaiting_ticker"
	case StateTimeframe:
		return "awaiting_timeframe"
	case StateContext:
		return "awaiting_context"
	default:
		return "unknown"
	}
}

// Session holds the working data of one user's conversation. It is only
// touched while its store key is held, so fields need no locking of their
// own.
type Session struct {
	State     State
	Ticker    string
	Timeframe models.Timeframe
	Snapshot  *models.Snapshot
}

// Reset clears the session back to the initial state.
func (s *Session) Reset() {
	s.State = StateTicker
	s.Ticker = ""
	s.Timeframe = ""
	s.Snapshot = nil
}

// Store maps chat IDs to sessions. A per-session mutex serializes all work
// for one chat (single writer per key); different chats proceed
// independently.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*sessionEntry)}
}

// Do runs fn with the chat's session locked, creating the session on first
// contact. All turns for one chat are strictly sequential.
func (st *Store) Do(chatID int64, fn func(*Session)) {
	st.mu.Lock()
	entry, ok := st.sessions[chatID]
	if !ok {
		entry = &sessionEntry{}
		st.sessions[chatID] = entry
	}
	st.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.session)
}

// Len returns the number of known sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
