package state

import "strings"

// GuessID identifies a submitted guess.
type GuessID string

// Guess is one entry of the guess log.
type Guess struct {
	ID        GuessID `json:"id"`
	By        string  `json:"by"`
	Guess     string  `json:"guess"`
	Correct   bool    `json:"correct"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// GuessLog is an append-only, id-deduplicated list of guesses in delivery order.
type GuessLog struct {
	tracker
	entries []Guess
	index   map[GuessID]struct{}
}

// NewGuessLog returns an empty log publishing to feed (which may be nil).
func NewGuessLog(feed *ChangeFeed) *GuessLog {
	return &GuessLog{
		tracker: newTracker(StoreGuesses, feed),
		index:   make(map[GuessID]struct{}),
	}
}

// Append adds the guess unless its id is already present. It reports whether
// the guess was added.
func (l *GuessLog) Append(guess Guess) (bool, error) {
	added, err := l.AppendBatch([]Guess{guess})
	return added == 1, err
}

// AppendBatch appends every guess whose id is new, preserving order, and
// returns how many were added. The batch is rejected whole if any id is empty.
func (l *GuessLog) AppendBatch(guesses []Guess) (int, error) {
	for _, guess := range guesses {
		if strings.TrimSpace(string(guess.ID)) == "" {
			return 0, newInvalidInput(opAppendGuess, reasonMissingID, "guess by %q has no id", guess.By)
		}
	}
	added := 0
	err := l.mutate(func() (bool, error) {
		for _, guess := range guesses {
			if _, ok := l.index[guess.ID]; ok {
				continue
			}
			l.index[guess.ID] = struct{}{}
			l.entries = append(l.entries, guess)
			added++
		}
		return added > 0, nil
	})
	return added, err
}

// Contains reports whether a guess id has been seen.
func (l *GuessLog) Contains(id GuessID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

// Len returns the number of logged guesses.
func (l *GuessLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log in arrival order.
func (l *GuessLog) Entries() []Guess {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]Guess, len(l.entries))
	copy(entries, l.entries)
	return entries
}
