package state

import (
	"sort"
	"strings"
)

// HintID identifies a hint.
type HintID string

// UnlockID identifies an unlock.
type UnlockID string

// Hint is a time-released clue. A hint with an empty DependsOn lives in the
// top-level hint mapping; otherwise it lives under its unlock, never both.
type Hint struct {
	ID        HintID
	Time      string
	Text      string
	Accepted  bool
	DependsOn UnlockID
}

// Unlock is a clue revealed by one or more guesses.
type Unlock struct {
	ID      UnlockID
	Text    *string
	Guesses map[string]struct{}
	Hints   map[HintID]Hint
}

// HintView is the read-only rendering of a hint.
type HintView struct {
	ID       HintID `json:"id"`
	Time     string `json:"time"`
	Text     string `json:"text"`
	Accepted bool   `json:"accepted"`
}

// UnlockView is the read-only rendering of an unlock with its guesses and
// time-sorted dependent hints.
type UnlockView struct {
	ID      UnlockID   `json:"id"`
	Text    *string    `json:"text"`
	Guesses []string   `json:"guesses"`
	Hints   []HintView `json:"hints"`
}

// ClueStore is the hints/unlocks aggregate of one puzzle session.
type ClueStore struct {
	tracker
	hints   map[HintID]Hint
	unlocks map[UnlockID]*Unlock
}

// NewClueStore returns an empty store publishing to feed (which may be nil).
func NewClueStore(feed *ChangeFeed) *ClueStore {
	return &ClueStore{
		tracker: newTracker(StoreClues, feed),
		hints:   make(map[HintID]Hint),
		unlocks: make(map[UnlockID]*Unlock),
	}
}

// ApplyHint upserts a hint. A hint depending on an unknown unlock creates a
// blank unlock to hold it.
func (s *ClueStore) ApplyHint(hint Hint) error {
	if strings.TrimSpace(string(hint.ID)) == "" {
		return newInvalidInput(opApplyHint, reasonMissingID, "hint id is empty")
	}
	return s.mutate(func() (bool, error) {
		s.removeHintLocked(hint.ID)
		if hint.DependsOn == "" {
			s.hints[hint.ID] = hint
			return true, nil
		}
		unlock := s.getOrCreateLocked(hint.DependsOn)
		unlock.Hints[hint.ID] = hint
		return true, nil
	})
}

// DeleteHint removes a hint from the top-level mapping or from the referenced
// unlock. Deleting a hint the store does not hold is an invariant violation.
func (s *ClueStore) DeleteHint(id HintID, dependsOn UnlockID) error {
	return s.mutate(func() (bool, error) {
		if _, ok := s.hints[id]; ok {
			delete(s.hints, id)
			return true, nil
		}
		if dependsOn != "" {
			if unlock, ok := s.unlocks[dependsOn]; ok {
				if _, ok := unlock.Hints[id]; ok {
					delete(unlock.Hints, id)
					return true, nil
				}
			}
		}
		return false, newInvariantViolation(opDeleteHint, reasonUnknownHint, "deleted invalid hint %q (unlock %q)", id, dependsOn)
	})
}

// MarkHintAccepted records that the server confirmed the user accepted a hint.
func (s *ClueStore) MarkHintAccepted(id HintID) error {
	return s.mutate(func() (bool, error) {
		if hint, ok := s.hints[id]; ok {
			hint.Accepted = true
			s.hints[id] = hint
			return true, nil
		}
		for _, unlock := range s.unlocks {
			if hint, ok := unlock.Hints[id]; ok {
				hint.Accepted = true
				unlock.Hints[id] = hint
				return true, nil
			}
		}
		return false, newInvariantViolation(opMarkHintAccepted, reasonUnknownHint, "accepted unknown hint %q", id)
	})
}

// GetOrCreateUnlock returns the unlock with the given id, creating a blank
// one (no text, no guesses, no hints) when it is unknown.
func (s *ClueStore) GetOrCreateUnlock(id UnlockID) (UnlockView, error) {
	if strings.TrimSpace(string(id)) == "" {
		return UnlockView{}, newInvalidInput(opGetOrCreateUnlock, reasonMissingID, "unlock id is empty")
	}
	var view UnlockView
	err := s.mutate(func() (bool, error) {
		_, existed := s.unlocks[id]
		view = s.getOrCreateLocked(id).view()
		return !existed, nil
	})
	return view, err
}

// NewUnlock creates the unlock if absent, sets its text and adds the guess
// that triggered it to its guess set.
func (s *ClueStore) NewUnlock(id UnlockID, text *string, guess string) error {
	if strings.TrimSpace(string(id)) == "" {
		return newInvalidInput(opNewUnlock, reasonMissingID, "unlock id is empty")
	}
	if guess == "" {
		return newInvalidInput(opNewUnlock, reasonMissingGuess, "unlock %q has no triggering guess", id)
	}
	return s.mutate(func() (bool, error) {
		unlock := s.getOrCreateLocked(id)
		if text != nil {
			value := *text
			unlock.Text = &value
		}
		unlock.Guesses[guess] = struct{}{}
		return true, nil
	})
}

// ChangeUnlock updates the display text of a known unlock.
func (s *ClueStore) ChangeUnlock(id UnlockID, text string) error {
	return s.mutate(func() (bool, error) {
		unlock, ok := s.unlocks[id]
		if !ok {
			return false, newInvariantViolation(opChangeUnlock, reasonUnknownUnlock, "changed invalid unlock %q", id)
		}
		value := text
		unlock.Text = &value
		return true, nil
	})
}

// DeleteUnlock removes an unlock and all of its dependent hints.
func (s *ClueStore) DeleteUnlock(id UnlockID) error {
	return s.mutate(func() (bool, error) {
		if _, ok := s.unlocks[id]; !ok {
			return false, newInvariantViolation(opDeleteUnlock, reasonUnknownUnlock, "deleted invalid unlock %q", id)
		}
		delete(s.unlocks, id)
		return true, nil
	})
}

// DeleteUnlockGuess removes one guess from an unlock; removing the last guess
// removes the unlock with its hints. Two teams submitting literally the same
// guess share one set entry, so the second removal fails here.
func (s *ClueStore) DeleteUnlockGuess(id UnlockID, guess string) error {
	return s.mutate(func() (bool, error) {
		unlock, ok := s.unlocks[id]
		if !ok {
			return false, newInvariantViolation(opDeleteUnlockGuess, reasonUnknownUnlock, "deleted guess for invalid unlock %q", id)
		}
		if _, ok := unlock.Guesses[guess]; !ok {
			return false, newInvariantViolation(opDeleteUnlockGuess, reasonUnknownGuess, "deleted invalid guess %q for unlock %q", guess, id)
		}
		delete(unlock.Guesses, guess)
		if len(unlock.Guesses) == 0 {
			delete(s.unlocks, id)
		}
		return true, nil
	})
}

// Hint looks up a hint wherever it lives.
func (s *ClueStore) Hint(id HintID) (Hint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hint, ok := s.hints[id]; ok {
		return hint, true
	}
	for _, unlock := range s.unlocks {
		if hint, ok := unlock.Hints[id]; ok {
			return hint, true
		}
	}
	return Hint{}, false
}

// Unlock returns the view of a known unlock.
func (s *ClueStore) Unlock(id UnlockID) (UnlockView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unlock, ok := s.unlocks[id]
	if !ok {
		return UnlockView{}, false
	}
	return unlock.view(), true
}

// Empty reports whether there are no hints and no unlocks.
func (s *ClueStore) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hints) == 0 && len(s.unlocks) == 0
}

// SortedHints returns the top-level hints ordered by time, then id.
func (s *ClueStore) SortedHints() []HintView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHintViews(s.hints)
}

// SortedUnlocks returns every unlock ordered by text, then id.
func (s *ClueStore) SortedUnlocks() []UnlockView {
	s.mu.RLock()
	views := make([]UnlockView, 0, len(s.unlocks))
	for _, unlock := range s.unlocks {
		views = append(views, unlock.view())
	}
	s.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		left, right := unlockSortText(views[i]), unlockSortText(views[j])
		if left != right {
			return left < right
		}
		return views[i].ID < views[j].ID
	})
	return views
}

func (s *ClueStore) getOrCreateLocked(id UnlockID) *Unlock {
	unlock, ok := s.unlocks[id]
	if !ok {
		unlock = &Unlock{
			ID:      id,
			Guesses: make(map[string]struct{}),
			Hints:   make(map[HintID]Hint),
		}
		s.unlocks[id] = unlock
	}
	return unlock
}

func (s *ClueStore) removeHintLocked(id HintID) {
	delete(s.hints, id)
	for _, unlock := range s.unlocks {
		delete(unlock.Hints, id)
	}
}

func (u *Unlock) view() UnlockView {
	guesses := make([]string, 0, len(u.Guesses))
	for guess := range u.Guesses {
		guesses = append(guesses, guess)
	}
	sort.Strings(guesses)
	var text *string
	if u.Text != nil {
		value := *u.Text
		text = &value
	}
	return UnlockView{
		ID:      u.ID,
		Text:    text,
		Guesses: guesses,
		Hints:   sortedHintViews(u.Hints),
	}
}

func unlockSortText(view UnlockView) string {
	if view.Text == nil {
		return ""
	}
	return *view.Text
}

func sortedHintViews(hints map[HintID]Hint) []HintView {
	views := make([]HintView, 0, len(hints))
	for _, hint := range hints {
		views = append(views, HintView{
			ID:       hint.ID,
			Time:     hint.Time,
			Text:     hint.Text,
			Accepted: hint.Accepted,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if order := compareHintTimes(views[i].Time, views[j].Time); order != 0 {
			return order < 0
		}
		return views[i].ID < views[j].ID
	})
	return views
}
