package wsserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/porby-sdk/porby/pkg/utils"
)

// SessionState is a per-connection lifecycle stage, per spec §4.4:
// pending → ready → (authenticated | closed).
type SessionState int

const (
	SessionPending SessionState = iota
	SessionReady
	SessionAuthenticated
	SessionClosed
)

// ConnectionState is the aggregate state the server reports via its
// onConnectionStateChange callback: Waiting once the last connection
// drops, Connected while at least one remains.
type ConnectionState int

const (
	StateWaiting ConnectionState = iota
	StateConnected
)

// connSession tracks one accepted connection. writeMu serializes all
// writes to conn: gorilla/websocket forbids concurrent writers, and a
// session can be written to from the broadcast path, the ping loop,
// and the read loop's own replies at once.
type connSession struct {
	id   string
	conn *websocket.Conn

	// logTag is a short, human-scannable correlation tag for log lines
	// about this session; id stays the protocol-facing UUID, logTag is
	// only for grepping a log file by eye.
	logTag string

	mu    sync.Mutex
	state SessionState

	writeMu sync.Mutex

	lastActive time.Time
	closeOnce  sync.Once
}

// newSession constructs a pending session with a fresh protocol id and
// log tag.
func newSession(id string, conn *websocket.Conn) *connSession {
	return &connSession{
		id:         id,
		conn:       conn,
		logTag:     utils.NewNanoID(),
		state:      SessionPending,
		lastActive: time.Now(),
	}
}

func (s *connSession) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *connSession) getState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *connSession) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *connSession) writeControl(messageType int, data []byte, deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(messageType, data, deadline)
}

func (s *connSession) close() {
	s.closeOnce.Do(func() {
		s.setState(SessionClosed)
		s.conn.Close()
	})
}
