package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"go.uber.org/zap"
)

const (
	// PreferenceSounds enables the notification sound.
	PreferenceSounds = "notificationSounds"
	// PreferenceNative enables native desktop notifications.
	PreferenceNative = "notificationNative"

	autoplayWarningText = "Playing notification sound failed. You may wish to enable autoplay audio."
)

// Preferences reads the user's notification opt-ins.
type Preferences interface {
	Enabled(ctx context.Context, key string) (bool, error)
}

// SoundPlayer plays the notification sound. An error means playback was
// rejected.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// NativeNotifier raises desktop notifications.
type NativeNotifier interface {
	PermissionGranted() bool
	HasFocus() bool
	Notify(ctx context.Context, title, body string) error
}

// AnnouncementSink receives the warning posted when a sound cannot play.
type AnnouncementSink interface {
	Upsert(input state.AnnouncementInput) (bool, error)
	Exists(id state.AnnouncementID) bool
}

// Config wires a Dispatcher to its collaborators. Nil collaborators disable
// the corresponding side effect.
type Config struct {
	Preferences   Preferences
	Sound         SoundPlayer
	Native        NativeNotifier
	Announcements AnnouncementSink
	Title         string
	Logger        *zap.Logger
}

// Dispatcher fires the sound and native side effects of a notifying event.
type Dispatcher struct {
	preferences   Preferences
	sound         SoundPlayer
	native        NativeNotifier
	announcements AnnouncementSink
	title         string
	logger        *zap.Logger
}

// NewDispatcher builds a dispatcher from cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = "Puzzle"
	}
	return &Dispatcher{
		preferences:   cfg.Preferences,
		sound:         cfg.Sound,
		native:        cfg.Native,
		announcements: cfg.Announcements,
		title:         title,
		logger:        logger,
	}
}

// Handler binds the apply step of one message kind to its notification
// policy. A nil Notify never notifies; a nil Text yields an empty body.
type Handler[T any] struct {
	Apply  func(ctx context.Context, event T) error
	Notify func(event T) bool
	Text   func(event T) string
}

// Always is the policy of events that notify on every delivery.
func Always[T any](T) bool {
	return true
}

// Literal returns a Text function yielding a fixed body.
func Literal[T any](text string) func(T) string {
	return func(T) string {
		return text
	}
}

// Handle resolves the notification policy and body against the state before
// the event, applies the event and, only if the apply succeeded and the
// policy said so, fires the side effects. Side-effect failures are logged,
// never returned.
func Handle[T any](ctx context.Context, d *Dispatcher, h Handler[T], event T) error {
	shouldNotify := h.Notify != nil && h.Notify(event)
	body := ""
	if shouldNotify && h.Text != nil {
		body = h.Text(event)
	}
	if h.Apply != nil {
		if err := h.Apply(ctx, event); err != nil {
			return err
		}
	}
	if !shouldNotify || d == nil {
		return nil
	}
	if err := d.Fire(ctx, body); err != nil {
		d.logger.Warn("notification side effect failed", zap.Error(err))
	}
	return nil
}

// Fire plays the sound and raises the native notification according to the
// user's preferences. The returned error joins every failed side effect.
func (d *Dispatcher) Fire(ctx context.Context, body string) error {
	var failures []error
	if err := d.playSound(ctx); err != nil {
		failures = append(failures, err)
	}
	if err := d.notifyNative(ctx, body); err != nil {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

func (d *Dispatcher) playSound(ctx context.Context) error {
	if d.sound == nil || !d.enabled(ctx, PreferenceSounds) {
		return nil
	}
	if d.announcements != nil && d.announcements.Exists(state.AutoplayRejectedID) {
		return nil
	}
	playErr := d.sound.Play(ctx)
	if playErr == nil {
		return nil
	}
	sideEffectErr := newSideEffectError(operationSound, reasonAutoplayRejected, playErr)
	if d.announcements == nil {
		return sideEffectErr
	}
	dismissible := true
	if _, err := d.announcements.Upsert(state.AnnouncementInput{
		ID:          state.AutoplayRejectedID,
		Text:        autoplayWarningText,
		Variant:     "warning",
		Dismissible: &dismissible,
	}); err != nil {
		return errors.Join(sideEffectErr, newSideEffectError(operationSound, reasonWarningFailed, err))
	}
	d.logger.Info("notification sound rejected; warning posted",
		zap.String("operation", operationSound),
		zap.String("reason", reasonAutoplayRejected),
		zap.Error(playErr),
	)
	return nil
}

func (d *Dispatcher) notifyNative(ctx context.Context, body string) error {
	if d.native == nil || !d.native.PermissionGranted() || !d.enabled(ctx, PreferenceNative) {
		return nil
	}
	if d.native.HasFocus() {
		return nil
	}
	if err := d.native.Notify(ctx, d.title, body); err != nil {
		return newSideEffectError(operationNative, reasonDeliveryFailed, err)
	}
	return nil
}

func (d *Dispatcher) enabled(ctx context.Context, key string) bool {
	if d.preferences == nil {
		return false
	}
	enabled, err := d.preferences.Enabled(ctx, key)
	if err != nil {
		d.logger.Warn("notification preference unavailable",
			zap.String("operation", operationPreferences),
			zap.String("reason", reasonLookupFailed),
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return enabled
}
