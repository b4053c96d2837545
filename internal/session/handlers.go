package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/huntsync/internal/notify"
	"github.com/MarcoPoloResearchLab/huntsync/internal/protocol"
	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
)

func bind[T any](c *Coordinator, handler notify.Handler[T]) dispatchEntry {
	return func(ctx context.Context, envelope protocol.Envelope) error {
		content, err := protocol.DecodeContent[T](envelope)
		if err != nil {
			return err
		}
		return notify.Handle(ctx, c.notifier, handler, content)
	}
}

// dispatchTable binds every message type. old_* variants share the apply of
// their new_* counterpart but never notify.
func (c *Coordinator) dispatchTable() map[protocol.MessageType]dispatchEntry {
	newGuesses := notify.Handler[[]protocol.GuessContent]{
		Apply:  c.applyGuesses,
		Notify: c.hasNewCorrectGuess,
		Text:   c.correctGuessText,
	}
	newUnlock := notify.Handler[protocol.UnlockContent]{
		Apply:  c.applyUnlock,
		Notify: notify.Always[protocol.UnlockContent],
		Text:   notify.Literal[protocol.UnlockContent]("New unlock"),
	}
	newHint := notify.Handler[protocol.HintContent]{
		Apply:  c.applyHint,
		Notify: notify.Always[protocol.HintContent],
		Text:   notify.Literal[protocol.HintContent]("New hint"),
	}

	return map[protocol.MessageType]dispatchEntry{
		protocol.MessageAnnouncement: bind(c, notify.Handler[protocol.AnnouncementContent]{
			Apply:  c.applyAnnouncement,
			Notify: c.announcementPolicy,
			Text:   notify.Literal[protocol.AnnouncementContent]("New announcement"),
		}),
		protocol.MessageDeleteAnnouncement: bind(c, notify.Handler[protocol.DeleteAnnouncementContent]{
			Apply: c.deleteAnnouncement,
		}),
		protocol.MessageNewGuesses: bind(c, newGuesses),
		protocol.MessageOldGuesses: bind(c, notify.Handler[[]protocol.GuessContent]{Apply: newGuesses.Apply}),
		protocol.MessageSolved: bind(c, notify.Handler[protocol.SolvedContent]{
			Apply:  c.applySolved,
			Notify: notify.Always[protocol.SolvedContent],
			Text:   notify.Literal[protocol.SolvedContent]("Puzzle solved"),
		}),
		protocol.MessageNewUnlock: bind(c, newUnlock),
		protocol.MessageOldUnlock: bind(c, notify.Handler[protocol.UnlockContent]{Apply: newUnlock.Apply}),
		protocol.MessageChangeUnlock: bind(c, notify.Handler[protocol.ChangeUnlockContent]{
			Apply:  c.changeUnlock,
			Notify: notify.Always[protocol.ChangeUnlockContent],
			Text:   notify.Literal[protocol.ChangeUnlockContent]("Updated unlock"),
		}),
		protocol.MessageDeleteUnlock: bind(c, notify.Handler[protocol.DeleteUnlockContent]{
			Apply: c.deleteUnlock,
		}),
		protocol.MessageDeleteUnlockGuess: bind(c, notify.Handler[protocol.DeleteUnlockGuessContent]{
			Apply: c.deleteUnlockGuess,
		}),
		protocol.MessageNewHint: bind(c, newHint),
		protocol.MessageOldHint: bind(c, notify.Handler[protocol.HintContent]{Apply: newHint.Apply}),
		protocol.MessageDeleteHint: bind(c, notify.Handler[protocol.DeleteHintContent]{
			Apply: c.deleteHint,
		}),
		protocol.MessageError: receivedError,
	}
}

func (c *Coordinator) announcementPolicy(content protocol.AnnouncementContent) bool {
	seen := c.state.Announcements.Exists(state.AnnouncementID(content.AnnouncementID))
	return content.Notify.ShouldNotify(seen)
}

func (c *Coordinator) applyAnnouncement(_ context.Context, content protocol.AnnouncementContent) error {
	_, err := c.state.Announcements.Upsert(state.AnnouncementInput{
		ID:          state.AnnouncementID(content.AnnouncementID),
		Title:       content.Title,
		Text:        content.Message,
		Variant:     content.Variant,
		Dismissible: content.Dismissible,
	})
	return err
}

func (c *Coordinator) deleteAnnouncement(_ context.Context, content protocol.DeleteAnnouncementContent) error {
	return c.state.Announcements.Delete(state.AnnouncementID(content.AnnouncementID))
}

func (c *Coordinator) applyGuesses(_ context.Context, content []protocol.GuessContent) error {
	guesses := make([]state.Guess, 0, len(content))
	for _, entry := range content {
		guesses = append(guesses, state.Guess{
			ID:        state.GuessID(entry.GuessUID),
			By:        entry.By,
			Guess:     entry.Guess,
			Correct:   entry.Correct,
			Timestamp: entry.Timestamp,
		})
	}
	_, err := c.state.Guesses.AppendBatch(guesses)
	return err
}

// hasNewCorrectGuess runs before the batch is applied, so Contains still
// reflects the log as it was.
func (c *Coordinator) hasNewCorrectGuess(content []protocol.GuessContent) bool {
	for _, entry := range content {
		if entry.Correct && !c.state.Guesses.Contains(state.GuessID(entry.GuessUID)) {
			return true
		}
	}
	return false
}

// correctGuessText also runs before the batch is applied and credits the
// first correct guess the log has not seen.
func (c *Coordinator) correctGuessText(content []protocol.GuessContent) string {
	for _, entry := range content {
		if entry.Correct && !c.state.Guesses.Contains(state.GuessID(entry.GuessUID)) {
			return fmt.Sprintf("Correct answer by %s", entry.By)
		}
	}
	return "Correct answer"
}

func (c *Coordinator) applySolved(ctx context.Context, content protocol.SolvedContent) error {
	solved := state.Solved{
		Guess:       content.Guess,
		By:          content.By,
		TimeSeconds: content.Time,
		Text:        content.Text,
		Redirect:    content.Redirect,
	}
	c.state.Solved.Record(solved)
	if c.onSolved != nil {
		c.onSolved(ctx, solved)
	}
	return nil
}

func (c *Coordinator) applyUnlock(_ context.Context, content protocol.UnlockContent) error {
	return c.state.Clues.NewUnlock(state.UnlockID(content.UnlockUID), content.Unlock, content.Guess)
}

func (c *Coordinator) changeUnlock(_ context.Context, content protocol.ChangeUnlockContent) error {
	return c.state.Clues.ChangeUnlock(state.UnlockID(content.UnlockUID), content.Unlock)
}

func (c *Coordinator) deleteUnlock(_ context.Context, content protocol.DeleteUnlockContent) error {
	return c.state.Clues.DeleteUnlock(state.UnlockID(content.UnlockUID))
}

func (c *Coordinator) deleteUnlockGuess(_ context.Context, content protocol.DeleteUnlockGuessContent) error {
	return c.state.Clues.DeleteUnlockGuess(state.UnlockID(content.UnlockUID), content.Guess)
}

func (c *Coordinator) applyHint(_ context.Context, content protocol.HintContent) error {
	return c.state.Clues.ApplyHint(state.Hint{
		ID:        state.HintID(content.HintUID),
		Time:      content.Time,
		Text:      content.Hint,
		Accepted:  content.Accepted,
		DependsOn: unlockRef(content.DependsOnUnlockUID),
	})
}

func (c *Coordinator) deleteHint(_ context.Context, content protocol.DeleteHintContent) error {
	return c.state.Clues.DeleteHint(state.HintID(content.HintUID), unlockRef(content.DependsOnUnlockUID))
}

// receivedError ends the session whatever shape the content has; a payload
// that is not an {error} object is quoted raw.
func receivedError(_ context.Context, envelope protocol.Envelope) error {
	content, err := protocol.DecodeContent[protocol.ErrorContent](envelope)
	if err == nil && content.Error != "" {
		return fmt.Errorf("%w: %s", ErrServerReported, content.Error)
	}
	var text string
	if json.Unmarshal(envelope.Content, &text) == nil && text != "" {
		return fmt.Errorf("%w: %s", ErrServerReported, text)
	}
	raw := strings.TrimSpace(string(envelope.Content))
	if raw == "" {
		raw = "no content"
	}
	return fmt.Errorf("%w: %s", ErrServerReported, raw)
}

func unlockRef(id *string) state.UnlockID {
	if id == nil {
		return ""
	}
	return state.UnlockID(*id)
}
