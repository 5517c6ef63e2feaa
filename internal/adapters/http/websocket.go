package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/ridepass/internal/core/usecases"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

const (
	wsPingInterval = 30 * time.Second
	wsEventTimeout = 15 * time.Second
)

// wsOutbound is every server-to-client frame.
type wsOutbound struct {
	Type    string                `json:"type"` // "session" | "error"
	Session *usecases.SessionView `json:"session,omitempty"`
	Event   string                `json:"event,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// WebSocketHandler streams one session's state to the rider front-end.
// The current view is sent on connect and again after every change; bursts
// of changes collapse into a single frame with the latest view. Clients
// send the same JSON as POST /v1/sessions/:id/events:
//
//	{"event":"tap_provider","provider_id":"..."}
func WebSocketHandler(sessions *usecases.SessionRegistry) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("id")
		logger := slog.Default().With("session_id", id, "remote_addr", c.RemoteAddr().String())

		sess, err := sessions.Get(id)
		if err != nil {
			_ = c.WriteJSON(wsOutbound{Type: "error", Error: err.Error()})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Size one: a pending signal already means "send the latest view".
		dirty := make(chan struct{}, 1)
		markDirty := func() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
		stop := sess.Watch(func(usecases.SessionView) { markDirty() })
		defer stop()
		markDirty()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-dirty:
					v := sess.View()
					if err := writeJSON(wsOutbound{Type: "session", Session: &v}); err != nil {
						return
					}
				case <-ticker.C:
					// Get also keeps the session from being reaped while connected.
					if _, err := sessions.Get(id); err != nil {
						_ = writeJSON(wsOutbound{Type: "error", Error: err.Error()})
						_ = c.Close()
						return
					}
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			sess.Touch()

			var req eventRequest
			if err := json.Unmarshal(msg, &req); err != nil || req.Event == "" {
				_ = writeJSON(wsOutbound{Type: "error", Error: "expected {\"event\": ...}"})
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), wsEventTimeout)
			_, err = dispatchEvent(ctx, sess, req)
			cancel()
			if err != nil {
				_ = writeJSON(wsOutbound{Type: "error", Event: req.Event, Error: err.Error()})
				continue
			}
			markDirty()
		}

		logger.Info("ws client disconnected")
	}
}
