package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func stringPtr(value string) *string {
	return &value
}

func TestApplyHintConvergesForAnyInterleaving(t *testing.T) {
	first := Hint{ID: "h1", Time: "0:10:00", Text: "first"}
	second := Hint{ID: "h1", Time: "0:10:00", Text: "second", Accepted: true}
	other := Hint{ID: "h2", Time: "0:05:00", Text: "other"}

	orders := [][]Hint{
		{first, second, other},
		{first, other, second},
		{other, first, second},
		{first, first, second, other, other},
	}

	var expected []HintView
	for index, order := range orders {
		store := NewClueStore(nil)
		for _, hint := range order {
			require.NoError(t, store.ApplyHint(hint))
		}
		hints := store.SortedHints()
		if index == 0 {
			expected = hints
			continue
		}
		require.Equal(t, expected, hints, "order %d", index)
	}
	require.Len(t, expected, 2)
	require.Equal(t, HintID("h2"), expected[0].ID)
	require.Equal(t, "second", expected[1].Text)
}

func TestApplyHintCreatesBlankUnlockForDependency(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", Text: "nested", DependsOn: "u1"}))

	unlock, ok := store.Unlock("u1")
	require.True(t, ok)
	require.Nil(t, unlock.Text)
	require.Empty(t, unlock.Guesses)
	require.Len(t, unlock.Hints, 1)
	require.Empty(t, store.SortedHints())
}

func TestApplyHintMovesHintBetweenLocations(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", Text: "top"}))
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", Text: "nested", DependsOn: "u1"}))

	require.Empty(t, store.SortedHints())
	unlock, ok := store.Unlock("u1")
	require.True(t, ok)
	require.Len(t, unlock.Hints, 1)
	require.Equal(t, "nested", unlock.Hints[0].Text)
}

func TestApplyHintRejectsMissingID(t *testing.T) {
	store := NewClueStore(nil)
	err := store.ApplyHint(Hint{Time: "0:01:00"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.True(t, store.Empty())
}

func TestSortedHintsOrdersByTimeThenID(t *testing.T) {
	store := NewClueStore(nil)
	for _, hint := range []Hint{
		{ID: "b", Time: "1 day, 0:00:00"},
		{ID: "c", Time: "0:10:00"},
		{ID: "a", Time: "0:10:00"},
		{ID: "d", Time: "2:00:00"},
	} {
		require.NoError(t, store.ApplyHint(hint))
	}

	var ids []HintID
	for _, hint := range store.SortedHints() {
		ids = append(ids, hint.ID)
	}
	require.Equal(t, []HintID{"a", "c", "d", "b"}, ids)
}

func TestDeleteUnlockGuessCascades(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "OPEN"))
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "KNOCK"))
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", DependsOn: "u1"}))

	require.NoError(t, store.DeleteUnlockGuess("u1", "KNOCK"))
	unlock, ok := store.Unlock("u1")
	require.True(t, ok, "non-last guess removal must keep the unlock")
	require.Equal(t, []string{"OPEN"}, unlock.Guesses)

	require.NoError(t, store.DeleteUnlockGuess("u1", "OPEN"))
	_, ok = store.Unlock("u1")
	require.False(t, ok)
	_, ok = store.Hint("h1")
	require.False(t, ok, "nested hints go with their unlock")
}

func TestNewUnlockThenDeleteGuessRemovesUnlock(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "OPEN"))

	unlock, ok := store.Unlock("u1")
	require.True(t, ok)
	require.Equal(t, "Door", *unlock.Text)
	require.Equal(t, []string{"OPEN"}, unlock.Guesses)

	require.NoError(t, store.DeleteUnlockGuess("u1", "OPEN"))
	require.True(t, store.Empty())
}

func TestNewUnlockCollapsesIdenticalGuesses(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "OPEN"))
	require.NoError(t, store.NewUnlock("u1", nil, "OPEN"))

	unlock, _ := store.Unlock("u1")
	require.Equal(t, []string{"OPEN"}, unlock.Guesses)
	require.Equal(t, "Door", *unlock.Text)

	require.NoError(t, store.DeleteUnlockGuess("u1", "OPEN"))
	err := store.DeleteUnlockGuess("u1", "OPEN")
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestUnknownReferencesRaiseInvariantViolationWithoutMutation(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "OPEN"))
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00"}))
	before := store.SortedUnlocks()
	beforeHints := store.SortedHints()
	revision := store.Revision()

	tests := []struct {
		name string
		call func() error
		code string
	}{
		{name: "delete-hint", call: func() error { return store.DeleteHint("missing", "") }, code: "clues.delete_hint.unknown_hint"},
		{name: "delete-hint-wrong-unlock", call: func() error { return store.DeleteHint("missing", "u1") }, code: "clues.delete_hint.unknown_hint"},
		{name: "delete-unlock", call: func() error { return store.DeleteUnlock("missing") }, code: "clues.delete_unlock.unknown_unlock"},
		{name: "change-unlock", call: func() error { return store.ChangeUnlock("missing", "text") }, code: "clues.change_unlock.unknown_unlock"},
		{name: "delete-guess-unknown-unlock", call: func() error { return store.DeleteUnlockGuess("missing", "OPEN") }, code: "clues.delete_unlockguess.unknown_unlock"},
		{name: "delete-guess-unknown-guess", call: func() error { return store.DeleteUnlockGuess("u1", "CLOSE") }, code: "clues.delete_unlockguess.unknown_guess"},
		{name: "mark-accepted", call: func() error { return store.MarkHintAccepted("missing") }, code: "clues.mark_hint_accepted.unknown_hint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, ErrInvariantViolation)
			var stateErr *StateError
			require.True(t, errors.As(err, &stateErr))
			require.Equal(t, tt.code, stateErr.Code())
			require.Equal(t, before, store.SortedUnlocks())
			require.Equal(t, beforeHints, store.SortedHints())
			require.Equal(t, revision, store.Revision())
		})
	}
}

func TestChangeUnlockUpdatesTextOnly(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u1", stringPtr("Door"), "OPEN"))
	require.NoError(t, store.ChangeUnlock("u1", "Window"))

	unlock, _ := store.Unlock("u1")
	require.Equal(t, "Window", *unlock.Text)
	require.Equal(t, []string{"OPEN"}, unlock.Guesses)
}

func TestDeleteHintFindsNestedHint(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", DependsOn: "u1"}))
	require.NoError(t, store.DeleteHint("h1", "u1"))

	unlock, ok := store.Unlock("u1")
	require.True(t, ok)
	require.Empty(t, unlock.Hints)
}

func TestMarkHintAcceptedNested(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.ApplyHint(Hint{ID: "h1", Time: "0:01:00", DependsOn: "u1"}))
	require.NoError(t, store.MarkHintAccepted("h1"))

	hint, ok := store.Hint("h1")
	require.True(t, ok)
	require.True(t, hint.Accepted)
}

func TestGetOrCreateUnlockIsIdempotent(t *testing.T) {
	store := NewClueStore(nil)
	created, err := store.GetOrCreateUnlock("u1")
	require.NoError(t, err)
	require.Equal(t, UnlockID("u1"), created.ID)
	revision := store.Revision()

	_, err = store.GetOrCreateUnlock("u1")
	require.NoError(t, err)
	require.Equal(t, revision, store.Revision())

	_, err = store.GetOrCreateUnlock("")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSortedUnlocksOrdersByTextThenID(t *testing.T) {
	store := NewClueStore(nil)
	require.NoError(t, store.NewUnlock("u2", stringPtr("Beta"), "B"))
	require.NoError(t, store.NewUnlock("u1", stringPtr("Alpha"), "A"))
	require.NoError(t, store.NewUnlock("u3", stringPtr("Alpha"), "C"))

	var ids []UnlockID
	for _, unlock := range store.SortedUnlocks() {
		ids = append(ids, unlock.ID)
	}
	require.Equal(t, []UnlockID{"u1", "u3", "u2"}, ids)
}
