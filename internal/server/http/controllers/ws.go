package controllers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Trust-in-depth/BAYKUS/internal/session"
)

// writeWait bounds how long one frame may take to flush before the session
// is considered dead.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Identity comes from forwarded headers, not cookies, so cross-origin
	// upgrades are safe to accept.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession adapts a websocket connection to the session surface actors
// broadcast to. Deliver is called from actor goroutines while the transport
// goroutine owns reads, so writes are serialized by a mutex.
type wsSession struct {
	id   string
	conn *websocket.Conn

	mu   sync.Mutex
	once sync.Once
}

func newWSSession(conn *websocket.Conn) *wsSession {
	return &wsSession{id: uuid.NewString(), conn: conn}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSession) Close() {
	s.once.Do(func() { _ = s.conn.Close() })
}

var _ session.Session = (*wsSession)(nil)
