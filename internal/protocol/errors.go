package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol marks frames that do not follow the puzzle websocket protocol.
var ErrProtocol = errors.New("protocol: invalid message")

const (
	opDecodeEnvelope = "protocol.decode_envelope"
	opDecodeContent  = "protocol.decode_content"
	opDispatch       = "protocol.dispatch"

	reasonInvalidJSON    = "invalid_json"
	reasonMissingType    = "missing_type"
	reasonInvalidContent = "invalid_content"
	reasonUnknownType    = "unknown_type"
)

// ProtocolError describes a frame that could not be decoded or routed.
// It is fatal to the frame only; the connection stays open.
type ProtocolError struct {
	code        string
	messageType MessageType
	err         error
}

func (e *ProtocolError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ProtocolError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *ProtocolError) Code() string {
	return e.code
}

// MessageType returns the type tag of the offending frame, if one was read.
func (e *ProtocolError) MessageType() MessageType {
	return e.messageType
}

func newProtocolError(operation, reason string, messageType MessageType, cause error) error {
	return &ProtocolError{
		code:        fmt.Sprintf("%s.%s", operation, reason),
		messageType: messageType,
		err:         cause,
	}
}

// UnknownTypeError reports a type tag that has no registered handler.
func UnknownTypeError(messageType MessageType, content []byte) error {
	return newProtocolError(opDispatch, reasonUnknownType, messageType,
		fmt.Errorf("%w: invalid message type %q, content: %s", ErrProtocol, messageType, string(content)))
}
