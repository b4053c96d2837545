package state

import "time"

const defaultMessageTTL = 7 * time.Second

// Message is a transient inline message, such as a failed answer submission.
type Message struct {
	Text      string    `json:"text"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageLog keeps transient messages until they fade out.
type MessageLog struct {
	tracker
	clock   func() time.Time
	ttl     time.Duration
	entries []Message
}

// NewMessageLog returns an empty log whose entries expire after ttl.
func NewMessageLog(feed *ChangeFeed, clock func() time.Time, ttl time.Duration) *MessageLog {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}
	return &MessageLog{
		tracker: newTracker(StoreMessages, feed),
		clock:   clock,
		ttl:     ttl,
	}
}

// Add records a message and drops expired ones.
func (l *MessageLog) Add(text, detail string) {
	_ = l.mutate(func() (bool, error) {
		now := l.clock()
		l.entries = l.activeLocked(now)
		l.entries = append(l.entries, Message{Text: text, Detail: detail, CreatedAt: now})
		return true, nil
	})
}

// Active returns the messages that have not yet expired.
func (l *MessageLog) Active() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeLocked(l.clock())
}

func (l *MessageLog) activeLocked(now time.Time) []Message {
	active := make([]Message, 0, len(l.entries))
	for _, message := range l.entries {
		if now.Sub(message.CreatedAt) < l.ttl {
			active = append(active, message)
		}
	}
	return active
}
