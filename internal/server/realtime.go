package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/huntsync/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RealtimeEventStateChanged = "state-change"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeSourceBackend     = "huntsync"
	defaultHeartbeatInterval  = 15 * time.Second
)

type realtimeChangePayload struct {
	Store     state.StoreName `json:"store"`
	Revision  uint64          `json:"revision"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
}

type realtimeHeartbeatPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// handleStateStream relays store changes as server-sent events until the
// client goes away. Views re-fetch /state on each change.
func (h *httpHandler) handleStateStream(c *gin.Context) {
	ctx := c.Request.Context()
	changes, cleanup := h.session.Changes.Subscribe(ctx)
	defer cleanup()

	subscriberID := uuid.NewString()
	h.logger.Debug("state stream opened", zap.String("subscriber_id", subscriberID))
	defer h.logger.Debug("state stream closed", zap.String("subscriber_id", subscriberID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent(RealtimeEventStateChanged, realtimeChangePayload{
				Store:     change.Store,
				Revision:  change.Revision,
				Timestamp: change.Timestamp.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSourceBackend,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, realtimeHeartbeatPayload{
				Timestamp: tick.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSourceBackend,
			})
			return true
		}
	})
}
