package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/huntsync/internal/notify"
	"github.com/MarcoPoloResearchLab/huntsync/internal/protocol"
	"github.com/MarcoPoloResearchLab/huntsync/internal/puzzleapi"
	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"github.com/MarcoPoloResearchLab/huntsync/internal/transport"
	"go.uber.org/zap"
)

const correctAnswerMessage = "Correct!"

// Sender writes outbound frames on the live connection.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// PuzzleAPI is the hunt server's side-channel HTTP surface.
type PuzzleAPI interface {
	AcceptHint(ctx context.Context, hintID string) error
	SubmitAnswer(ctx context.Context, answer string) (puzzleapi.AnswerResult, error)
}

// ConnectionIndicator shows whether the live connection is up.
type ConnectionIndicator interface {
	Connected()
	Disconnected()
}

// SolvedHandler is told when the puzzle is solved, typically to follow the
// redirect.
type SolvedHandler func(ctx context.Context, solved state.Solved)

// Config wires a Coordinator.
type Config struct {
	State     *state.Session
	Sender    Sender
	API       PuzzleAPI
	Notifier  *notify.Dispatcher
	Reporter  ErrorReporter
	Indicator ConnectionIndicator
	OnSolved  SolvedHandler
	Clock     func() time.Time
	Logger    *zap.Logger
}

type dispatchEntry func(ctx context.Context, envelope protocol.Envelope) error

// Coordinator routes inbound frames to the session stores and drives
// catch-up on every (re)connect. It owns the session state; views only read.
type Coordinator struct {
	state     *state.Session
	sender    Sender
	api       PuzzleAPI
	notifier  *notify.Dispatcher
	reporter  ErrorReporter
	indicator ConnectionIndicator
	onSolved  SolvedHandler
	clock     func() time.Time
	logger    *zap.Logger
	dispatch  map[protocol.MessageType]dispatchEntry

	mu            sync.Mutex
	lastUpdated   time.Time
	cooldownUntil time.Time
}

// NewCoordinator builds the dispatch table and fails if any message type is
// left without a handler.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.State == nil {
		return nil, errors.New("session: state is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = NewLogReporter(logger)
	}
	var indicator ConnectionIndicator = cfg.State.Connection
	if cfg.Indicator != nil {
		indicator = cfg.Indicator
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	coordinator := &Coordinator{
		state:     cfg.State,
		sender:    cfg.Sender,
		api:       cfg.API,
		notifier:  cfg.Notifier,
		reporter:  reporter,
		indicator: indicator,
		onSolved:  cfg.OnSolved,
		clock:     clock,
		logger:    logger,
	}
	coordinator.dispatch = coordinator.dispatchTable()
	if err := checkDispatchTable(coordinator.dispatch); err != nil {
		return nil, err
	}
	return coordinator, nil
}

func checkDispatchTable(table map[protocol.MessageType]dispatchEntry) error {
	var missing []string
	for _, messageType := range protocol.MessageTypes() {
		if table[messageType] == nil {
			missing = append(missing, messageType.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteDispatch, strings.Join(missing, ", "))
	}
	return nil
}

// SetSender attaches the connection used for catch-up requests.
func (c *Coordinator) SetSender(sender Sender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

// State returns the session state for read-only use.
func (c *Coordinator) State() *state.Session {
	return c.state
}

// TransportHandlers adapts the coordinator to the transport callbacks.
func (c *Coordinator) TransportHandlers() transport.Handlers {
	return transport.Handlers{
		OnOpen:    c.HandleOpen,
		OnMessage: c.HandleFrame,
		OnDisconnect: func(err error) {
			if err != nil {
				c.logger.Warn("websocket disconnected", zap.Error(err))
			}
		},
		OnStatus: c.HandleStatus,
	}
}

// HandleFrame decodes and dispatches one inbound frame. Only errors fatal to
// the session are returned; everything else goes to the reporter and the
// connection stays up.
func (c *Coordinator) HandleFrame(ctx context.Context, frame []byte) error {
	envelope, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		c.reporter.Report(ctx, err)
		return nil
	}
	c.mu.Lock()
	c.lastUpdated = c.clock()
	c.mu.Unlock()

	entry, ok := c.dispatch[envelope.Type]
	if !ok {
		c.reporter.Report(ctx, protocol.UnknownTypeError(envelope.Type, envelope.Content))
		return nil
	}
	if err := entry(ctx, envelope); err != nil {
		if errors.Is(err, ErrServerReported) {
			c.logger.Error("server reported error; ending session", zap.Error(err))
			return err
		}
		c.reporter.Report(ctx, err)
	}
	return nil
}

// CatchUpRequests returns what to ask the server for on connect: the full
// guess history on the first connection, or everything since the last frame
// on a reconnection.
func (c *Coordinator) CatchUpRequests() []protocol.CatchUpRequest {
	c.mu.Lock()
	lastUpdated := c.lastUpdated
	c.mu.Unlock()
	if lastUpdated.IsZero() {
		return []protocol.CatchUpRequest{protocol.GuessesSince(protocol.CursorAll())}
	}
	cursor := protocol.CursorAt(lastUpdated)
	return []protocol.CatchUpRequest{
		protocol.GuessesSince(cursor),
		protocol.HintsSince(cursor),
		protocol.AllUnlocks(),
	}
}

// HandleOpen sends the catch-up requests for a new connection.
func (c *Coordinator) HandleOpen(ctx context.Context, connection transport.ConnectionState) error {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil {
		return errors.New("session: no sender attached")
	}
	requests := c.CatchUpRequests()
	for _, request := range requests {
		if err := sender.Send(ctx, request); err != nil {
			return fmt.Errorf("session: send %s: %w", request.Type, err)
		}
	}
	c.logger.Debug("catch-up requested",
		zap.String("connection_id", connection.ConnectionID),
		zap.Int("requests", len(requests)),
	)
	return nil
}

// HandleStatus forwards connection transitions to the indicator.
func (c *Coordinator) HandleStatus(status transport.Status) {
	switch status {
	case transport.StatusDisconnected:
		c.indicator.Disconnected()
	case transport.StatusConnected, transport.StatusReconnected:
		c.indicator.Connected()
	}
}

// AcceptHint asks the server to reveal a hint and marks it accepted locally
// once the server agrees.
func (c *Coordinator) AcceptHint(ctx context.Context, hintID state.HintID) error {
	if c.api == nil {
		return errors.New("session: puzzle api unavailable")
	}
	if _, ok := c.state.Clues.Hint(hintID); !ok {
		return fmt.Errorf("%w: unknown hint %q", state.ErrInvalidInput, hintID)
	}
	if err := c.api.AcceptHint(ctx, string(hintID)); err != nil {
		return err
	}
	return c.state.Clues.MarkHintAccepted(hintID)
}

// SubmitAnswer submits a guess. Failures are also recorded as inline
// messages; an incorrect guess starts the cooldown.
func (c *Coordinator) SubmitAnswer(ctx context.Context, answer string) (puzzleapi.AnswerResult, error) {
	if c.api == nil {
		return puzzleapi.AnswerResult{}, errors.New("session: puzzle api unavailable")
	}
	if remaining := c.CooldownRemaining(); remaining > 0 {
		return puzzleapi.AnswerResult{}, fmt.Errorf("%w: %s left", ErrCoolingDown, remaining.Round(100*time.Millisecond))
	}
	result, err := c.api.SubmitAnswer(ctx, answer)
	if err != nil {
		text, detail := puzzleapi.SubmissionMessage(err)
		c.state.Messages.Add(text, detail)
		return puzzleapi.AnswerResult{}, err
	}
	if result.Correct {
		c.state.Messages.Add(correctAnswerMessage, "")
		return result, nil
	}
	now := c.clock()
	c.mu.Lock()
	c.cooldownUntil = now.Add(puzzleapi.Cooldown(result, now))
	c.mu.Unlock()
	return result, nil
}

// CooldownRemaining returns how long until another answer may be submitted.
func (c *Coordinator) CooldownRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.cooldownUntil.Sub(c.clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DismissAnnouncement removes a dismissible announcement at the user's request.
func (c *Coordinator) DismissAnnouncement(id state.AnnouncementID) error {
	return c.state.Announcements.Dismiss(id)
}
