package state

// Solved records the team's correct answer for the puzzle.
type Solved struct {
	Guess       string  `json:"guess"`
	By          string  `json:"by"`
	TimeSeconds float64 `json:"time_seconds"`
	Text        string  `json:"text"`
	Redirect    string  `json:"redirect"`
}

// SolvedState holds the solved record once the server reports it.
type SolvedState struct {
	tracker
	solved *Solved
}

// NewSolvedState returns an unsolved state.
func NewSolvedState(feed *ChangeFeed) *SolvedState {
	return &SolvedState{tracker: newTracker(StoreSolved, feed)}
}

// Record stores the solved record, replacing any earlier one.
func (s *SolvedState) Record(solved Solved) {
	_ = s.mutate(func() (bool, error) {
		value := solved
		s.solved = &value
		return true, nil
	})
}

// Get returns the solved record if the puzzle is solved.
func (s *SolvedState) Get() (Solved, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.solved == nil {
		return Solved{}, false
	}
	return *s.solved, true
}
