package session

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/huntsync/internal/protocol"
	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"go.uber.org/zap"
)

var (
	// ErrServerReported wraps the message of an inbound error frame. It is
	// fatal to the session.
	ErrServerReported = errors.New("session: server reported error")
	// ErrCoolingDown indicates an answer submitted before the previous
	// incorrect guess's cooldown ended.
	ErrCoolingDown = errors.New("session: answer cooldown active")
	// ErrIncompleteDispatch indicates a message type without a bound handler.
	ErrIncompleteDispatch = errors.New("session: dispatch table incomplete")
)

// ErrorReporter receives non-fatal failures: protocol errors and state
// invariant violations.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

// LogReporter reports errors through zap at error level.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter returns a reporter writing to logger.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

// Report logs err with its operation and reason when it carries a code.
func (r *LogReporter) Report(_ context.Context, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{zap.Error(err)}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		operation, reason := splitCode(coded.Code())
		fields = append(fields, zap.String("operation", operation), zap.String("reason", reason))
	}
	var protocolErr *protocol.ProtocolError
	if errors.As(err, &protocolErr) && protocolErr.MessageType() != "" {
		fields = append(fields, zap.String("message_type", protocolErr.MessageType().String()))
	}
	switch {
	case errors.Is(err, state.ErrInvariantViolation):
		r.logger.Error("state desync with server", fields...)
	case errors.Is(err, protocol.ErrProtocol):
		r.logger.Error("protocol error", fields...)
	default:
		r.logger.Error("session event failed", fields...)
	}
}

func splitCode(code string) (string, string) {
	index := strings.LastIndex(code, ".")
	if index < 0 {
		return code, ""
	}
	return code[:index], code[index+1:]
}
