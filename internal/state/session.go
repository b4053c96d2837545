package state

import "time"

// SessionConfig configures a Session.
type SessionConfig struct {
	Clock      func() time.Time
	MessageTTL time.Duration
}

// Session is the state of one puzzle page session. It is created when the
// session starts and owned by the session coordinator; views only read it.
type Session struct {
	Changes       *ChangeFeed
	Clues         *ClueStore
	Guesses       *GuessLog
	Announcements *AnnouncementBoard
	Messages      *MessageLog
	Solved        *SolvedState
	Connection    *ConnectionBanner
}

// NewSession constructs empty stores sharing one change feed.
func NewSession(cfg SessionConfig) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	feed := NewChangeFeed(clock)
	return &Session{
		Changes:       feed,
		Clues:         NewClueStore(feed),
		Guesses:       NewGuessLog(feed),
		Announcements: NewAnnouncementBoard(feed),
		Messages:      NewMessageLog(feed, clock, cfg.MessageTTL),
		Solved:        NewSolvedState(feed),
		Connection:    NewConnectionBanner(feed, clock, cfg.MessageTTL),
	}
}

// Snapshot is a consistent-per-store copy of the session for rendering.
type Snapshot struct {
	Hints         []HintView       `json:"hints"`
	Unlocks       []UnlockView     `json:"unlocks"`
	Guesses       []Guess          `json:"guesses"`
	Announcements []Announcement   `json:"announcements"`
	Messages      []Message        `json:"messages"`
	Solved        *Solved          `json:"solved,omitempty"`
	Connection    ConnectionStatus `json:"connection"`
}

// Snapshot copies every store.
func (s *Session) Snapshot() Snapshot {
	snapshot := Snapshot{
		Hints:         s.Clues.SortedHints(),
		Unlocks:       s.Clues.SortedUnlocks(),
		Guesses:       s.Guesses.Entries(),
		Announcements: s.Announcements.List(),
		Messages:      s.Messages.Active(),
		Connection:    s.Connection.Status(),
	}
	if solved, ok := s.Solved.Get(); ok {
		snapshot.Solved = &solved
	}
	return snapshot
}
