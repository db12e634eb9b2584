package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents upgrades the connection and parks it in the registry until
// the client goes away. Inbound frames are drained as liveness only.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.opts.Registry.Connect(conn, userID)
	defer s.opts.Registry.Disconnect(conn, userID)

	log.Info().Str("user_id", userID).Msg("events channel opened")
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Info().Str("user_id", userID).Msg("events channel closed")
			return
		}
	}
}
