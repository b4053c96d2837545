package puzzleapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a client built without a usable page URL.
	ErrInvalidConfig = errors.New("puzzleapi: invalid config")
	// ErrRequestFailed indicates a transport or decoding failure talking to the hunt server.
	ErrRequestFailed = errors.New("puzzleapi: request failed")
	// ErrHintRejected indicates the server refused to record a hint acceptance.
	ErrHintRejected = errors.New("puzzleapi: hint acceptance rejected")
	// ErrEmptyAnswer indicates an attempt to submit a blank answer.
	ErrEmptyAnswer = errors.New("puzzleapi: answer is empty")
	// ErrTooFast indicates the team must wait before guessing again.
	ErrTooFast = errors.New("puzzleapi: guessing too fast")
	// ErrAlreadyAnswered indicates the team already solved the puzzle.
	ErrAlreadyAnswered = errors.New("puzzleapi: puzzle already answered")
	// ErrSubmissionFailed covers every other refused submission.
	ErrSubmissionFailed = errors.New("puzzleapi: answer submission failed")
)

const (
	operationAcceptHint   = "puzzleapi.accept_hint"
	operationSubmitAnswer = "puzzleapi.submit_answer"

	reasonBuildRequest = "build_request"
	reasonTransport    = "transport"
	reasonDecode       = "decode_response"
	reasonRejected     = "rejected"
	reasonValidation   = "validation"
)

// APIError carries the operation.reason code, HTTP status and server message
// of a failed side-channel call.
type APIError struct {
	operation string
	reason    string
	status    int
	message   string
	err       error
}

func (e *APIError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Code(), e.err, e.message)
	}
	return fmt.Sprintf("%s: %v", e.Code(), e.err)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *APIError) Code() string {
	return e.operation + "." + e.reason
}

// Status returns the HTTP status, or zero when no response arrived.
func (e *APIError) Status() int {
	return e.status
}

// ServerMessage returns the error text the server sent, if any.
func (e *APIError) ServerMessage() string {
	return e.message
}

func newAPIError(operation, reason string, status int, message string, cause error) *APIError {
	return &APIError{
		operation: operation,
		reason:    reason,
		status:    status,
		message:   message,
		err:       cause,
	}
}
