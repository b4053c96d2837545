package state

import "time"

const (
	disconnectedBanner = "Websocket is disconnected; attempting to reconnect. If the problem persists, please notify the admins."
	reconnectedNotice  = "Websocket connection re-established."
)

// ConnectionStatus is what the view shows about the live connection.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Banner    string `json:"banner,omitempty"`
	Notice    string `json:"notice,omitempty"`
}

// ConnectionBanner keeps a persistent banner while disconnected and a
// transient notice after reconnecting.
type ConnectionBanner struct {
	tracker
	clock         func() time.Time
	noticeTTL     time.Duration
	connected     bool
	disconnected  bool
	reconnectedAt time.Time
}

// NewConnectionBanner returns a banner in the not-yet-connected state.
func NewConnectionBanner(feed *ChangeFeed, clock func() time.Time, noticeTTL time.Duration) *ConnectionBanner {
	if clock == nil {
		clock = time.Now
	}
	if noticeTTL <= 0 {
		noticeTTL = defaultMessageTTL
	}
	return &ConnectionBanner{
		tracker:   newTracker(StoreConnection, feed),
		clock:     clock,
		noticeTTL: noticeTTL,
	}
}

// Connected clears the banner. The reconnected notice is only shown when a
// banner was up.
func (c *ConnectionBanner) Connected() {
	_ = c.mutate(func() (bool, error) {
		if c.disconnected {
			c.reconnectedAt = c.clock()
		}
		changed := !c.connected || c.disconnected
		c.connected = true
		c.disconnected = false
		return changed, nil
	})
}

// Disconnected raises the banner.
func (c *ConnectionBanner) Disconnected() {
	_ = c.mutate(func() (bool, error) {
		if c.disconnected {
			return false, nil
		}
		c.connected = false
		c.disconnected = true
		return true, nil
	})
}

// Status returns the current banner state.
func (c *ConnectionBanner) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := ConnectionStatus{Connected: c.connected}
	if c.disconnected {
		status.Banner = disconnectedBanner
	}
	if !c.reconnectedAt.IsZero() && c.connected && c.clock().Sub(c.reconnectedAt) < c.noticeTTL {
		status.Notice = reconnectedNotice
	}
	return status
}
