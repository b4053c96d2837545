package notify

import (
	"errors"
	"fmt"
)

// ErrNotificationSideEffect is wrapped by every SideEffectError.
var ErrNotificationSideEffect = errors.New("notify: side effect failed")

const (
	operationSound       = "notify.sound"
	operationNative      = "notify.native"
	operationPreferences = "notify.preferences"

	reasonAutoplayRejected = "autoplay_rejected"
	reasonWarningFailed    = "warning_failed"
	reasonDeliveryFailed   = "delivery_failed"
	reasonLookupFailed     = "lookup_failed"
)

// SideEffectError reports a notification side effect that failed after the
// event was applied. It never undoes the apply.
type SideEffectError struct {
	code string
	err  error
}

func (e *SideEffectError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SideEffectError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *SideEffectError) Code() string {
	return e.code
}

func newSideEffectError(operation, reason string, cause error) *SideEffectError {
	if cause == nil {
		cause = ErrNotificationSideEffect
	} else {
		cause = fmt.Errorf("%w: %w", ErrNotificationSideEffect, cause)
	}
	return &SideEffectError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
