package surface

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/showcontroller/obsbot-osc/internal/pubsub"
)

const (
	wsBufferSize   = 64
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 10 * time.Second
	wsPongWait     = 2 * wsPingInterval
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for WebSocket
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame is one message pushed to a websocket client.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Frame types.
const (
	FrameStatus      = "status"
	FrameVariables   = "variables"
	FrameDefinitions = "definitions"
)

// handleWebsocket pushes a snapshot of status, definitions and variables,
// then every change until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	statusSub := s.ps.Subscribe(pubsub.TopicStatus, wsBufferSize)
	defer s.ps.Unsubscribe(statusSub)
	varsSub := s.ps.Subscribe(pubsub.TopicVariables, wsBufferSize)
	defer s.ps.Unsubscribe(varsSub)
	defsSub := s.ps.Subscribe(pubsub.TopicDefinitions, wsBufferSize)
	defer s.ps.Unsubscribe(defsSub)

	log := s.logger.With("remote", r.RemoteAddr)
	log.Debug("websocket client connected")

	// replaces the read deadline left by the HTTP server
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// the read side only detects the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(f Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(f); err != nil {
			log.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	status, msg := s.ctrl.Status()
	state := s.ctrl.State()
	for _, f := range []Frame{
		{Type: FrameStatus, Data: StatusEvent{Status: status, Message: msg}},
		{Type: FrameDefinitions, Data: state.Definitions()},
		{Type: FrameVariables, Data: state.Values()},
	} {
		if !write(f) {
			return
		}
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		var f Frame
		select {
		case <-gone:
			log.Debug("websocket client disconnected")
			return
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
			continue
		case m := <-statusSub.Channel:
			f = Frame{Type: FrameStatus, Data: m}
		case m := <-varsSub.Channel:
			f = Frame{Type: FrameVariables, Data: m}
		case m := <-defsSub.Channel:
			f = Frame{Type: FrameDefinitions, Data: m}
		}
		if !write(f) {
			return
		}
	}
}
