// Package wsserver implements the WebSocket server half of the
// transport layer: accepting connections, running each one's
// pending→ready→(authenticated|closed) session lifecycle, gating log
// delivery on pairing, and broadcasting to authenticated viewers. It
// is adapted from the teacher's pkg/handlers/websocket package, with
// the subscription/target model replaced by the flat
// authenticated-or-not broadcast model spec §4.4 describes, and with
// the duplicate health-check ticker collapsed into the read deadline
// (see DESIGN.md).
package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/porby-sdk/porby/pkg/codec"
	"github.com/porby-sdk/porby/pkg/collector"
	"github.com/porby-sdk/porby/pkg/model"
	"github.com/porby-sdk/porby/pkg/pairing"
)

// Callbacks bundles the server's outward-facing hooks. All are
// optional; a nil callback is simply not invoked.
type Callbacks struct {
	// Handshake builds the handshake sent to a connection the moment
	// it reaches the ready state.
	Handshake func() model.Handshake
	// OnCommand is invoked for a command message from an
	// authorized connection (pairing disabled, or that connection has
	// authenticated).
	OnCommand func(connID string, cmd *codec.Command)
	// OnViewerAuthenticated fires the moment a connection transitions
	// into SessionAuthenticated.
	OnViewerAuthenticated func(connID string)
	// OnConnectionStateChange fires whenever the aggregate connection
	// count transitions across zero in either direction.
	OnConnectionStateChange func(state ConnectionState)
	// Emit and EmergencyFlush, if both set, let an unrecovered panic in
	// a connection's read loop be captured as a crash entry and flushed
	// before it propagates, via collector.RecoverAndFlush — the same
	// recovery wired into the engine's ingest path and flush timer.
	Emit           func(model.LogEntry)
	EmergencyFlush func()
}

// Server is a WebSocket server gated by an optional pairing.Manager.
// A nil Pairing means pairing is not required: every connection is
// implicitly authenticated as soon as it is ready.
type Server struct {
	cfg      Config
	pairing  *pairing.Manager
	cb       Callbacks
	upgrader websocket.Upgrader

	mu            sync.RWMutex
	sessions      map[string]*connSession
	authenticated map[string]struct{}

	httpServer *http.Server
	listener   net.Listener
	addr       string

	wg sync.WaitGroup
}

// New constructs a Server. pairingMgr may be nil to disable pairing.
func New(cfg Config, pairingMgr *pairing.Manager, cb Callbacks) *Server {
	return &Server{
		cfg:     cfg.withDefaults(),
		pairing: pairingMgr,
		cb:      cb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions:      make(map[string]*connSession),
		authenticated: make(map[string]struct{}),
	}
}

// Start binds the configured port and begins accepting connections.
// An invalid configured port (negative, or out of the 16-bit range)
// surfaces as invalid_port(n) per spec §4.4, rather than being handed
// to net.Listen to fail opaquely.
func (s *Server) Start() error {
	if s.cfg.Port < 0 || s.cfg.Port > 65535 {
		return fmt.Errorf("wsserver: invalid_port(%d)", s.cfg.Port)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = fmt.Sprintf("127.0.0.1:%d", ln.Addr().(*net.TCPAddr).Port)
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("wsserver: serve exited", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns a loopback address (127.0.0.1:port) for the bound
// listener port. The listener itself binds all interfaces so LAN
// peers discovered via mDNS can reach it; Addr exists for local
// tooling and tests, and is most useful when Config.Port is 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop cancels the listener and every open connection. In-flight
// sends may be dropped without notification, per spec §5.
func (s *Server) Stop() {
	s.mu.Lock()
	sessions := make([]*connSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}

	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	s.wg.Wait()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("wsserver: upgrade failed", slog.String("error", err.Error()))
		return
	}

	sess := newSession(uuid.New().String(), conn)

	s.mu.Lock()
	if s.cfg.MaxConnections > 0 && len(s.sessions) >= s.cfg.MaxConnections {
		s.mu.Unlock()
		slog.Warn("wsserver: connection limit reached, rejecting", slog.String("conn", sess.logTag), slog.Int("max", s.cfg.MaxConnections))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection limit reached"), time.Now().Add(s.cfg.WriteWait))
		conn.Close()
		return
	}
	wasEmpty := len(s.sessions) == 0
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if wasEmpty && s.cb.OnConnectionStateChange != nil {
		s.cb.OnConnectionStateChange(StateConnected)
	}

	s.wg.Add(1)
	go s.runSession(sess)
}

func (s *Server) runSession(sess *connSession) {
	defer collector.RecoverAndFlush(s.cb.Emit, s.cb.EmergencyFlush)
	defer s.wg.Done()
	defer s.removeSession(sess)

	sess.conn.SetReadLimit(s.cfg.MaxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runPingLoop(ctx, sess)

	sess.setState(SessionReady)
	if err := s.sendHandshake(sess); err != nil {
		slog.Error("wsserver: send handshake failed", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
		return
	}

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("wsserver: connection error", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
			}
			return
		}

		msg, err := codec.Decode(data)
		if err != nil {
			// Unknown type is a hard decode error, connection-scoped.
			slog.Warn("wsserver: decode error, closing connection", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
			return
		}
		s.handleInbound(sess, msg)
	}
}

func (s *Server) handleInbound(sess *connSession, msg codec.Message) {
	switch msg.Type {
	case codec.TypePing:
		s.broadcastPong()
	case codec.TypeCommand:
		if msg.Command == nil {
			return
		}
		if !s.requiresPairing() || s.isAuthenticated(sess.id) {
			if s.cb.OnCommand != nil {
				s.cb.OnCommand(sess.id, msg.Command)
			}
		}
	case codec.TypePairingRequest:
		s.handlePairingRequest(sess, msg.PairingCode)
	default:
		// pairingResponse/handshake/log* are server-authored only;
		// a peer sending one back is ignored, per spec §4.4.
	}
}

func (s *Server) handlePairingRequest(sess *connSession, code string) {
	var accepted bool
	var reason string

	if s.pairing == nil {
		accepted = true
	} else {
		result := s.pairing.Validate(code)
		accepted = result.Accepted
		reason = result.Reason
	}

	if accepted {
		s.markAuthenticated(sess.id)
		sess.setState(SessionAuthenticated)
	}

	b, err := codec.EncodePairingResponse(accepted, reason)
	if err != nil {
		slog.Error("wsserver: encode pairing response", slog.String("error", err.Error()))
		return
	}
	if err := sess.writeMessage(websocket.BinaryMessage, b); err != nil {
		slog.Debug("wsserver: write pairing response failed", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
	}

	if accepted && s.cb.OnViewerAuthenticated != nil {
		s.cb.OnViewerAuthenticated(sess.id)
	}
}

func (s *Server) sendHandshake(sess *connSession) error {
	if s.cb.Handshake == nil {
		return nil
	}
	h := s.cb.Handshake()
	b, err := codec.EncodeHandshake(h)
	if err != nil {
		return err
	}
	return sess.writeMessage(websocket.BinaryMessage, b)
}

func (s *Server) runPingLoop(ctx context.Context, sess *connSession) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sess.writeControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) removeSession(sess *connSession) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	delete(s.authenticated, sess.id)
	empty := len(s.sessions) == 0
	s.mu.Unlock()

	sess.close()

	if empty && s.cb.OnConnectionStateChange != nil {
		s.cb.OnConnectionStateChange(StateWaiting)
	}
}

func (s *Server) markAuthenticated(connID string) {
	s.mu.Lock()
	s.authenticated[connID] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) isAuthenticated(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authenticated[connID]
	return ok
}

func (s *Server) requiresPairing() bool {
	return s.pairing != nil
}

func (s *Server) broadcastPong() {
	b, err := codec.EncodePong()
	if err != nil {
		return
	}
	s.mu.RLock()
	sessions := make([]*connSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		if err := sess.writeMessage(websocket.BinaryMessage, b); err != nil {
			slog.Debug("wsserver: pong delivery failed", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
		}
	}
}

// Send encodes entries as log (singular) or logBatch and delivers
// them to every eligible connection: every connection if pairing is
// disabled, otherwise only authenticated ones.
func (s *Server) Send(entries []model.LogEntry) {
	if len(entries) == 0 {
		return
	}
	b, err := codec.EncodeEntries(entries)
	if err != nil {
		slog.Error("wsserver: encode entries failed", slog.String("error", err.Error()))
		return
	}

	for _, sess := range s.eligibleSessions() {
		if err := sess.writeMessage(websocket.BinaryMessage, b); err != nil {
			slog.Debug("wsserver: send failed", slog.String("conn", sess.logTag), slog.String("error", err.Error()))
		}
	}
}

// SendReplay encodes entries as logReplay and delivers them to connID
// only.
func (s *Server) SendReplay(entries []model.LogEntry, connID string) error {
	b, err := codec.EncodeReplay(entries)
	if err != nil {
		return err
	}

	s.mu.RLock()
	sess, ok := s.sessions[connID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsserver: unknown connection %q", connID)
	}
	return sess.writeMessage(websocket.BinaryMessage, b)
}

func (s *Server) eligibleSessions() []*connSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*connSession, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if s.pairing == nil {
			out = append(out, sess)
			continue
		}
		if _, ok := s.authenticated[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

// HasAuthenticatedViewers reports whether at least one connection is
// eligible to receive log entries right now.
func (s *Server) HasAuthenticatedViewers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pairing == nil {
		return len(s.sessions) > 0
	}
	return len(s.authenticated) > 0
}

// ConnectionCount reports the number of currently open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
