package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/huntsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/huntsync/internal/puzzleapi"
	"github.com/MarcoPoloResearchLab/huntsync/internal/session"
	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingSession     = errors.New("session state dependency required")
	errMissingActions     = errors.New("session actions dependency required")
	errMissingPreferences = errors.New("preference store dependency required")
)

// SessionActions are the user-initiated operations the view may trigger.
type SessionActions interface {
	AcceptHint(ctx context.Context, hintID state.HintID) error
	SubmitAnswer(ctx context.Context, answer string) (puzzleapi.AnswerResult, error)
	CooldownRemaining() time.Duration
	DismissAnnouncement(id state.AnnouncementID) error
}

// PreferenceStore reads and writes the notification opt-ins.
type PreferenceStore interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

type Dependencies struct {
	Session           *state.Session
	Actions           SessionActions
	Preferences       PreferenceStore
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Session == nil {
		return nil, errMissingSession
	}
	if deps.Actions == nil {
		return nil, errMissingActions
	}
	if deps.Preferences == nil {
		return nil, errMissingPreferences
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		session:     deps.Session,
		actions:     deps.Actions,
		preferences: deps.Preferences,
		logger:      logger,
		heartbeat:   heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/state", handler.handleState)
	router.GET("/state/stream", handler.handleStateStream)
	router.POST("/hints/:id/accept", handler.handleAcceptHint)
	router.POST("/answers", handler.handleSubmitAnswer)
	router.GET("/preferences", handler.handleListPreferences)
	router.PUT("/preferences/:key", handler.handleSetPreference)
	router.DELETE("/announcements/:id", handler.handleDismissAnnouncement)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	session     *state.Session
	actions     SessionActions
	preferences PreferenceStore
	logger      *zap.Logger
	heartbeat   time.Duration
}

type statePayload struct {
	state.Snapshot
	CooldownMillis int64 `json:"cooldown_ms"`
}

type answerRequestPayload struct {
	Answer string `json:"answer"`
}

type answerResponsePayload struct {
	Correct        bool   `json:"correct"`
	Guess          string `json:"guess,omitempty"`
	By             string `json:"by,omitempty"`
	CooldownMillis int64  `json:"cooldown_ms"`
}

type preferenceRequestPayload struct {
	Value string `json:"value"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": h.session.Connection.Status().Connected,
	})
}

func (h *httpHandler) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, statePayload{
		Snapshot:       h.session.Snapshot(),
		CooldownMillis: h.actions.CooldownRemaining().Milliseconds(),
	})
}

func (h *httpHandler) handleAcceptHint(c *gin.Context) {
	hintID := strings.TrimSpace(c.Param("id"))
	if hintID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.actions.AcceptHint(c.Request.Context(), state.HintID(hintID))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, state.ErrInvalidInput), errors.Is(err, state.ErrInvariantViolation):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_hint"})
	case errors.Is(err, puzzleapi.ErrHintRejected):
		h.logger.Warn("hint acceptance rejected", zap.String("hint_uid", hintID), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "hint_rejected"})
	default:
		h.logger.Error("hint acceptance failed", zap.String("hint_uid", hintID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "accept_failed"})
	}
}

func (h *httpHandler) handleSubmitAnswer(c *gin.Context) {
	var request answerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Answer) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.actions.SubmitAnswer(c.Request.Context(), request.Answer)
	if err != nil {
		status, code := answerErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("answer submission failed", zap.Error(err))
		}
		c.JSON(status, gin.H{
			"error":       code,
			"cooldown_ms": h.actions.CooldownRemaining().Milliseconds(),
		})
		return
	}
	c.JSON(http.StatusOK, answerResponsePayload{
		Correct:        result.Correct,
		Guess:          result.Guess,
		By:             result.By,
		CooldownMillis: h.actions.CooldownRemaining().Milliseconds(),
	})
}

func answerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrCoolingDown):
		return http.StatusTooManyRequests, "cooling_down"
	case errors.Is(err, puzzleapi.ErrTooFast):
		return http.StatusTooManyRequests, "too_fast"
	case errors.Is(err, puzzleapi.ErrAlreadyAnswered):
		return http.StatusUnprocessableEntity, "already_answered"
	case errors.Is(err, puzzleapi.ErrEmptyAnswer):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, puzzleapi.ErrSubmissionFailed):
		return http.StatusBadRequest, "submission_failed"
	default:
		return http.StatusBadGateway, "submission_failed"
	}
}

func (h *httpHandler) handleListPreferences(c *gin.Context) {
	values, err := h.preferences.All(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load preferences", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preferences_unavailable"})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *httpHandler) handleSetPreference(c *gin.Context) {
	var request preferenceRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	key := c.Param("key")
	err := h.preferences.Set(c.Request.Context(), key, request.Value)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, preferences.ErrUnknownKey):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_preference"})
	case errors.Is(err, preferences.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_value"})
	default:
		h.logger.Error("failed to store preference", zap.String("preference", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preferences_unavailable"})
	}
}

func (h *httpHandler) handleDismissAnnouncement(c *gin.Context) {
	id := state.AnnouncementID(c.Param("id"))
	err := h.actions.DismissAnnouncement(id)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, state.ErrNotDismissible):
		c.JSON(http.StatusConflict, gin.H{"error": "not_dismissible"})
	case errors.Is(err, state.ErrInvariantViolation):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_announcement"})
	default:
		h.logger.Error("failed to dismiss announcement", zap.String("announcement_id", string(id)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dismiss_failed"})
	}
}
