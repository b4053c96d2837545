package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is wrapped by every TransportError.
	ErrTransport = errors.New("transport: connection failed")
	// ErrNotConnected is returned by Send while no socket is open.
	ErrNotConnected = errors.New("transport: not connected")
)

const (
	operationDial  = "transport.dial"
	operationRead  = "transport.read"
	operationSend  = "transport.send"
	operationClose = "transport.close"

	reasonDialFailed   = "failed"
	reasonClosed       = "closed"
	reasonFatalClose   = "fatal_close"
	reasonHandler      = "handler_failed"
	reasonEncode       = "encode_failed"
	reasonWrite        = "write_failed"
	reasonNotConnected = "not_connected"
)

// TransportError describes a closed or failed connection. Fatal errors end
// Run; the rest are retried according to the reconnect policy.
type TransportError struct {
	code      string
	closeCode int
	fatal     bool
	err       error
}

func (e *TransportError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *TransportError) Code() string {
	return e.code
}

// CloseCode returns the WebSocket close code that ended the connection.
func (e *TransportError) CloseCode() int {
	return e.closeCode
}

// Fatal reports whether the connection must not be retried.
func (e *TransportError) Fatal() bool {
	return e.fatal
}

func newTransportError(operation, reason string, closeCode int, fatal bool, cause error) *TransportError {
	if cause == nil {
		cause = ErrTransport
	} else if !errors.Is(cause, ErrTransport) {
		cause = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	return &TransportError{
		code:      fmt.Sprintf("%s.%s", operation, reason),
		closeCode: closeCode,
		fatal:     fatal,
		err:       cause,
	}
}
