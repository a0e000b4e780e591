package app

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	CommandGetUsers = "get_users"

	UsageMessage     = "Invalid message. Use 'get_users' to get users."
	FetchFailMessage = "failed to fetch users"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket answers each text message on the connection until the
// client goes away. Failures are reported as text; the connection stays open.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	log := s.logger.With("ws", uuid.NewString())
	log.Debug("websocket connected", "remote", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply := UsageMessage
		if string(data) == CommandGetUsers {
			names, err := s.UserNames(r.Context())
			if err != nil {
				log.Error("list users", "err", err)
				reply = FetchFailMessage
			} else {
				reply = strings.Join(names, ", ")
			}
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			log.Debug("websocket write", "err", err)
			return
		}
	}
}
