package transport

import (
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"
)

const (
	baseReconnectDelay  = 500 * time.Millisecond
	maxBackoffExponent  = 6
	reconnectJitterSpan = 0.1
)

// ReconnectPolicy decides, after a close with closeCode following attempts
// failed cycles, how long to wait before redialing. Returning false stops
// reconnecting.
type ReconnectPolicy func(closeCode int, attempts int) (time.Duration, bool)

// DefaultReconnectPolicy never retries policy-violation (1008) or
// internal-error (1011) closes, and otherwise backs off exponentially from
// 500ms, plateauing at 32s from the seventh attempt, scaled by a jitter
// factor in [1.0, 1.1). A nil random uses math/rand.
func DefaultReconnectPolicy(random func() float64) ReconnectPolicy {
	if random == nil {
		random = rand.Float64
	}
	return func(closeCode int, attempts int) (time.Duration, bool) {
		if IsFatalCloseCode(closeCode) {
			return 0, false
		}
		return backoffDelay(attempts, random()), true
	}
}

// IsFatalCloseCode reports whether the server closed the socket on purpose.
func IsFatalCloseCode(closeCode int) bool {
	return closeCode == websocket.ClosePolicyViolation || closeCode == websocket.CloseInternalServerErr
}

func backoffDelay(attempts int, jitter float64) time.Duration {
	exponent := attempts
	if exponent < 0 {
		exponent = 0
	}
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter >= 1 {
		jitter = 0.999999
	}
	base := baseReconnectDelay * time.Duration(1<<exponent)
	return time.Duration(float64(base) * (1 + jitter*reconnectJitterSpan))
}
