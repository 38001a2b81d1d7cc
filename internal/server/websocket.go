package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/picguess/picguess-backend/internal"
)

const (
	writeTimeout = 10 * time.Second
	outboxSize   = 256
)

// HandleWebSocket upgrades the connection and attaches it to the addressed
// room, either as the host (role=host&token=...) or as a player (name=...).
// In-game traffic flows over the socket; the join intent is carried by the
// upgrade request itself.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newWSConn(socket, s.log)
	go conn.writePump()

	room, ok := s.registry.Get(mux.Vars(r)["roomId"])
	if !ok {
		conn.Send(internal.Message[any]{Type: internal.MsgError, Data: internal.ErrorData{
			Kind:   internal.ErrKindInvalidRequest,
			Detail: "room not found",
		}})
		conn.Close()
		return
	}

	query := r.URL.Query()
	if query.Get("role") == "host" {
		room.AttachHost(query.Get("token"), conn)
		conn.readPump(func(msgType string, data json.RawMessage) {
			switch msgType {
			case internal.MsgStartGame:
				room.StartGame()
			default:
				conn.Send(internal.Message[any]{Type: internal.MsgError, Data: internal.ErrorData{
					Kind:   internal.ErrKindInvalidRequest,
					Detail: "unknown message type: " + msgType,
				}})
			}
		})
		room.DetachHost()
		return
	}

	playerID := uuid.NewString()
	room.Join(playerID, query.Get("name"), conn)
	conn.readPump(func(msgType string, data json.RawMessage) {
		switch msgType {
		case internal.MsgGuess:
			var text string
			if err := json.Unmarshal(data, &text); err != nil {
				return
			}
			room.SubmitGuess(playerID, text)
		case internal.MsgStartGame:
			conn.Send(internal.Message[any]{Type: internal.MsgError, Data: internal.ErrorData{
				Kind:   internal.ErrKindInvalidRequest,
				Detail: "only the host can start the game",
			}})
		}
	})
	room.Leave(playerID)
}

// wsConn adapts a gorilla socket to the engine's Conn seam: a buffered
// outbox drained by a single writer goroutine, with slow consumers dropping
// messages instead of blocking the room.
type wsConn struct {
	socket  *websocket.Conn
	outbox  chan internal.Message[any]
	done    chan struct{}
	closing sync.Once
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newWSConn(socket *websocket.Conn, logger zerolog.Logger) *wsConn {
	return &wsConn{
		socket:  socket,
		outbox:  make(chan internal.Message[any], outboxSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(8, 16),
		log:     logger,
	}
}

func (c *wsConn) Send(msg internal.Message[any]) {
	select {
	case <-c.done:
	case c.outbox <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("outbox full, dropping message")
	}
}

func (c *wsConn) Close() {
	c.closing.Do(func() { close(c.done) })
}

func (c *wsConn) writePump() {
	for {
		select {
		case msg := <-c.outbox:
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.socket.WriteJSON(msg); err != nil {
				c.Close()
				c.socket.Close()
				return
			}
		case <-c.done:
			// Both channels can be ready at once when a send and the close
			// race; flush whatever is already queued before the close frame
			// so the last messages are not lost.
			for {
				select {
				case msg := <-c.outbox:
					c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := c.socket.WriteJSON(msg); err != nil {
						c.socket.Close()
						return
					}
				default:
					c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
					c.socket.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					c.socket.Close()
					return
				}
			}
		}
	}
}

// readPump decodes inbound envelopes and hands them to the role-specific
// handler until the socket drops. Inbound traffic is rate limited per
// connection.
func (c *wsConn) readPump(handle func(msgType string, data json.RawMessage)) {
	defer c.Close()
	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		var msg internal.Message[json.RawMessage]
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		handle(msg.Type, msg.Data)
	}
}
