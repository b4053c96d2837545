package state

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariantViolation indicates a client/server desync: the server referenced
	// an entity the client never created.
	ErrInvariantViolation = errors.New("state: invariant violation")
	// ErrInvalidInput indicates an event that is missing required identifiers.
	ErrInvalidInput = errors.New("state: invalid input")
	// ErrNotDismissible indicates an attempt to dismiss a pinned announcement.
	ErrNotDismissible = errors.New("state: announcement not dismissible")
)

const (
	opApplyHint         = "clues.apply_hint"
	opDeleteHint        = "clues.delete_hint"
	opMarkHintAccepted  = "clues.mark_hint_accepted"
	opNewUnlock         = "clues.new_unlock"
	opChangeUnlock      = "clues.change_unlock"
	opDeleteUnlock      = "clues.delete_unlock"
	opDeleteUnlockGuess = "clues.delete_unlockguess"
	opGetOrCreateUnlock = "clues.get_or_create_unlock"
	opAppendGuess       = "guesses.append"
	opUpsertAnnounce    = "announcements.upsert"
	opDeleteAnnounce    = "announcements.delete"
	opDismissAnnounce   = "announcements.dismiss"

	reasonMissingID      = "missing_id"
	reasonMissingGuess   = "missing_guess"
	reasonUnknownHint    = "unknown_hint"
	reasonUnknownUnlock  = "unknown_unlock"
	reasonUnknownGuess   = "unknown_guess"
	reasonUnknownAnnounc = "unknown_announcement"
	reasonNotDismissible = "not_dismissible"
)

// StateError carries the operation.reason code of a rejected mutation.
type StateError struct {
	code string
	err  error
}

func (e *StateError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StateError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *StateError) Code() string {
	return e.code
}

func newStateError(operation, reason string, cause error) error {
	return &StateError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func newInvariantViolation(operation, reason, format string, args ...any) error {
	return newStateError(operation, reason, fmt.Errorf("%w: "+format, append([]any{ErrInvariantViolation}, args...)...))
}

func newInvalidInput(operation, reason, format string, args ...any) error {
	return newStateError(operation, reason, fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...))
}
