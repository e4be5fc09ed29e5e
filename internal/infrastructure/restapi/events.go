package restapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	eventBuffer       = 32
	heartbeatInterval = 15 * time.Second
)

// StreamEvents pushes status, token and outcome events as server-sent events.
// The first event is a "state" snapshot of the orchestrator.
func (h *Handler) StreamEvents(c *gin.Context) {
	events, cancel := h.Feed.Subscribe(eventBuffer)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// the server write timeout would cut long-lived streams
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.Logger.Debug("Cannot lift write deadline for event stream", "error", err)
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	if payload, err := json.Marshal(h.Transfers.State()); err == nil {
		c.SSEvent("state", string(payload))
		c.Writer.Flush()
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case ev, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Warn("Cannot encode feed event", "type", ev.Type, "error", err)
				return true
			}
			c.SSEvent(string(ev.Type), string(payload))
			return true
		}
	})
}
