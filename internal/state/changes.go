package state

import (
	"context"
	"sync"
	"time"
)

// StoreName identifies the store that produced a Change.
type StoreName string

const (
	StoreClues         StoreName = "clues"
	StoreGuesses       StoreName = "guesses"
	StoreAnnouncements StoreName = "announcements"
	StoreMessages      StoreName = "messages"
	StoreSolved        StoreName = "solved"
	StoreConnection    StoreName = "connection"
)

// Change is published after every successful store mutation.
type Change struct {
	Store     StoreName `json:"store"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangeFeed fans store changes out to view subscribers. Slow subscribers miss
// changes rather than blocking the mutation path.
type ChangeFeed struct {
	mu          sync.RWMutex
	subscribers map[int64]*changeSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type changeSubscriber struct {
	id     int64
	stream chan Change
}

// NewChangeFeed constructs an empty feed.
func NewChangeFeed(clock func() time.Time) *ChangeFeed {
	if clock == nil {
		clock = time.Now
	}
	return &ChangeFeed{
		subscribers: make(map[int64]*changeSubscriber),
		bufferSize:  16,
		clock:       clock,
	}
}

// Subscribe registers a subscriber until ctx ends or the returned cleanup runs.
func (f *ChangeFeed) Subscribe(ctx context.Context) (<-chan Change, func()) {
	subscriber := &changeSubscriber{
		stream: make(chan Change, f.bufferSize),
	}
	f.register(subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			f.unregister(subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the change to every subscriber with buffer room.
func (f *ChangeFeed) Publish(change Change) {
	if f == nil || change.Store == "" {
		return
	}
	f.mu.RLock()
	if len(f.subscribers) == 0 {
		f.mu.RUnlock()
		return
	}
	copies := make([]*changeSubscriber, 0, len(f.subscribers))
	for _, subscriber := range f.subscribers {
		copies = append(copies, subscriber)
	}
	f.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- change:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (f *ChangeFeed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *ChangeFeed) now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f.clock()
}

func (f *ChangeFeed) register(subscriber *changeSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	subscriber.id = f.nextID
	f.subscribers[subscriber.id] = subscriber
}

func (f *ChangeFeed) unregister(subscriberID int64) {
	f.mu.Lock()
	delete(f.subscribers, subscriberID)
	f.mu.Unlock()
}

// tracker is embedded by every store: it owns the store lock and revision and
// publishes a Change after each mutation that reports it changed something.
type tracker struct {
	mu       sync.RWMutex
	store    StoreName
	revision uint64
	feed     *ChangeFeed
}

func newTracker(store StoreName, feed *ChangeFeed) tracker {
	return tracker{store: store, feed: feed}
}

func (t *tracker) mutate(apply func() (bool, error)) error {
	t.mu.Lock()
	changed, err := apply()
	if err != nil || !changed {
		t.mu.Unlock()
		return err
	}
	t.revision++
	change := Change{Store: t.store, Revision: t.revision, Timestamp: t.feed.now()}
	t.mu.Unlock()
	t.feed.Publish(change)
	return nil
}

// Revision returns the number of mutations applied so far.
func (t *tracker) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}
