package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"execution-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamedEvents is the full set of engine lifecycle topics pushed to
// websocket clients.
var streamedEvents = []events.Event{
	events.EventOrderSubmitted,
	events.EventOrderFilled,
	events.EventOrderCancelled,
	events.EventOrderRejected,
	events.EventOrderChase,
	events.EventCancelRace,
	events.EventRetriesExhausted,
	events.EventExecutionFinished,
}

// websocket streams every engine lifecycle event to the client as JSON
// envelopes until the client disconnects.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.SubscribeAll(streamedEvents, 100)
	defer unsub()

	// Drain reads so close frames are processed; a read error means the
	// client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env, ok := <-stream:
			if !ok {
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				s.Log.Debug("ws write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
