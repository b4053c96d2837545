package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuessLogDeduplicatesByID(t *testing.T) {
	log := NewGuessLog(nil)

	added, err := log.AppendBatch([]Guess{
		{ID: "g1", By: "alice", Guess: "ONE"},
		{ID: "g2", By: "bob", Guess: "TWO", Correct: true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, added)

	added, err = log.AppendBatch([]Guess{{ID: "g2", By: "bob", Guess: "TWO again"}})
	require.NoError(t, err)
	require.Zero(t, added)
	require.Equal(t, 2, log.Len())

	entries := log.Entries()
	require.Equal(t, GuessID("g1"), entries[0].ID)
	require.Equal(t, "TWO", entries[1].Guess)
}

func TestGuessLogPreservesDeliveryOrder(t *testing.T) {
	log := NewGuessLog(nil)
	for _, id := range []GuessID{"c", "a", "b"} {
		ok, err := log.Append(Guess{ID: id})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var ids []GuessID
	for _, entry := range log.Entries() {
		ids = append(ids, entry.ID)
	}
	require.Equal(t, []GuessID{"c", "a", "b"}, ids)
}

func TestGuessLogRejectsBatchWithMissingID(t *testing.T) {
	log := NewGuessLog(nil)
	_, err := log.AppendBatch([]Guess{{ID: "g1"}, {By: "anon"}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, log.Len())
	require.False(t, log.Contains("g1"))
}

func TestGuessLogBumpsRevisionOncePerBatch(t *testing.T) {
	log := NewGuessLog(nil)
	_, err := log.AppendBatch([]Guess{{ID: "g1"}, {ID: "g2"}, {ID: "g3"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), log.Revision())

	_, err = log.AppendBatch([]Guess{{ID: "g1"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), log.Revision())
}
