package state

import (
	"slices"
	"strings"
)

// AnnouncementID identifies an announcement. Server ids are numeric; ids
// created on the client start with an underscore.
type AnnouncementID string

// AutoplayRejectedID is the announcement posted when a notification sound
// could not be played.
const AutoplayRejectedID AnnouncementID = "_autoplay_rejected"

// Announcement is a displayed alert.
type Announcement struct {
	ID          AnnouncementID `json:"id"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	Variant     string         `json:"variant"`
	Dismissible bool           `json:"dismissible"`
}

// AnnouncementInput is an announcement as delivered; a nil Dismissible means
// the sender did not say, which defaults to not dismissible.
type AnnouncementInput struct {
	ID          AnnouncementID
	Title       string
	Text        string
	Variant     string
	Dismissible *bool
}

// AnnouncementBoard holds the announcements currently displayed.
type AnnouncementBoard struct {
	tracker
	entries map[AnnouncementID]Announcement
	order   []AnnouncementID
}

// NewAnnouncementBoard returns an empty board publishing to feed (which may be nil).
func NewAnnouncementBoard(feed *ChangeFeed) *AnnouncementBoard {
	return &AnnouncementBoard{
		tracker: newTracker(StoreAnnouncements, feed),
		entries: make(map[AnnouncementID]Announcement),
	}
}

// Upsert stores or overwrites the announcement and reports whether it was new.
func (b *AnnouncementBoard) Upsert(input AnnouncementInput) (bool, error) {
	if strings.TrimSpace(string(input.ID)) == "" {
		return false, newInvalidInput(opUpsertAnnounce, reasonMissingID, "announcement id is empty")
	}
	created := false
	err := b.mutate(func() (bool, error) {
		if _, ok := b.entries[input.ID]; !ok {
			created = true
			b.order = append(b.order, input.ID)
		}
		b.entries[input.ID] = Announcement{
			ID:          input.ID,
			Title:       input.Title,
			Text:        input.Text,
			Variant:     input.Variant,
			Dismissible: input.Dismissible != nil && *input.Dismissible,
		}
		return true, nil
	})
	return created, err
}

// Delete removes an announcement the server retracted.
func (b *AnnouncementBoard) Delete(id AnnouncementID) error {
	return b.mutate(func() (bool, error) {
		if _, ok := b.entries[id]; !ok {
			return false, newInvariantViolation(opDeleteAnnounce, reasonUnknownAnnounc, "deleted invalid announcement %q", id)
		}
		b.removeLocked(id)
		return true, nil
	})
}

// Dismiss removes an announcement at the user's request; only dismissible
// announcements can be dismissed.
func (b *AnnouncementBoard) Dismiss(id AnnouncementID) error {
	return b.mutate(func() (bool, error) {
		announcement, ok := b.entries[id]
		if !ok {
			return false, newInvariantViolation(opDismissAnnounce, reasonUnknownAnnounc, "dismissed invalid announcement %q", id)
		}
		if !announcement.Dismissible {
			return false, newStateError(opDismissAnnounce, reasonNotDismissible, ErrNotDismissible)
		}
		b.removeLocked(id)
		return true, nil
	})
}

// Exists reports whether the announcement is displayed.
func (b *AnnouncementBoard) Exists(id AnnouncementID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[id]
	return ok
}

// Get returns a displayed announcement.
func (b *AnnouncementBoard) Get(id AnnouncementID) (Announcement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	announcement, ok := b.entries[id]
	return announcement, ok
}

// List returns the displayed announcements in first-seen order.
func (b *AnnouncementBoard) List() []Announcement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := make([]Announcement, 0, len(b.order))
	for _, id := range b.order {
		list = append(list, b.entries[id])
	}
	return list
}

func (b *AnnouncementBoard) removeLocked(id AnnouncementID) {
	delete(b.entries, id)
	b.order = slices.DeleteFunc(b.order, func(candidate AnnouncementID) bool {
		return candidate == id
	})
}
