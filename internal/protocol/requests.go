package protocol

import (
	"encoding/json"
	"strconv"
	"time"
)

// RequestType is the type tag of an outbound catch-up request.
type RequestType string

const (
	RequestGuesses RequestType = "guesses-plz"
	RequestHints   RequestType = "hints-plz"
	RequestUnlocks RequestType = "unlocks-plz"
)

const cursorAll = "all"

// Cursor scopes a catch-up request: either all history or everything after a
// point in time, sent as unix milliseconds.
type Cursor struct {
	all bool
	at  time.Time
}

// CursorAll requests the full history.
func CursorAll() Cursor {
	return Cursor{all: true}
}

// CursorAt requests state changed after the given instant.
func CursorAt(at time.Time) Cursor {
	return Cursor{at: at}
}

// MarshalJSON implements json.Marshaler.
func (c Cursor) MarshalJSON() ([]byte, error) {
	if c.all {
		return json.Marshal(cursorAll)
	}
	return []byte(strconv.FormatInt(c.at.UnixMilli(), 10)), nil
}

// CatchUpRequest asks the server to replay state the client may have missed.
type CatchUpRequest struct {
	Type RequestType `json:"type"`
	From *Cursor     `json:"from,omitempty"`
}

// GuessesSince builds a guesses-plz request.
func GuessesSince(cursor Cursor) CatchUpRequest {
	return CatchUpRequest{Type: RequestGuesses, From: &cursor}
}

// HintsSince builds a hints-plz request.
func HintsSince(cursor Cursor) CatchUpRequest {
	return CatchUpRequest{Type: RequestHints, From: &cursor}
}

// AllUnlocks builds an unlocks-plz request.
func AllUnlocks() CatchUpRequest {
	return CatchUpRequest{Type: RequestUnlocks}
}
