package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ragchat/internal/match"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// wsPeer adapts a websocket connection to the match.Peer interface.
// Gorilla connections allow only one concurrent writer, so Send serializes
// writes with its own mutex.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) Send(msg match.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(msg)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}

// handleSignaling upgrades the connection, registers it with the matching
// manager, and runs the receive loop until the client sends a disconnect
// message, the transport fails, or the connection closes. Cleanup runs
// exactly once per connection via the deferred Disconnect, which the manager
// keeps idempotent.
func (s *Server) handleSignaling(w http.ResponseWriter, r *http.Request) {
	role, err := match.ParseRole(r.URL.Query().Get("client_type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.URL.Query().Get("client_id")
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("websocket upgrade failed: %v", err)
		return
	}
	peer := &wsPeer{conn: conn}

	if err := s.matcher.Connect(id, role, peer); err != nil {
		s.log.Printf("connect %s rejected: %v", id, err)
		_ = peer.Send(match.Message{"type": "error", "error": err.Error()})
		_ = conn.Close()
		return
	}
	defer s.matcher.Disconnect(id)

	for {
		var msg match.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Printf("connection %s dropped: %v", id, err)
			}
			return
		}
		switch msg.Type() {
		case match.TypeDisconnect:
			return
		case match.TypeOffer, match.TypeAnswer, match.TypeICECandidate:
			s.matcher.Relay(id, msg)
		default:
			s.log.Printf("ignoring %q message from %s", msg.Type(), id)
		}
	}
}
