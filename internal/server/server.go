package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/picguess/picguess-backend/internal"
	"github.com/picguess/picguess-backend/internal/game"
)

// Server is the HTTP and websocket shell around the game engine: room
// creation and host edits over REST, everything in-game over the socket.
type Server struct {
	registry *game.Registry
	defaults internal.Settings
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func New(registry *game.Registry, defaults internal.Settings, logger zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.With().Str("component", "server").Logger(),
	}
}
