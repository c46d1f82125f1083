// Package transport glues the WebSocket server, Bonjour advertiser,
// pairing manager, persistence journal, and network path monitor into
// the single unit the Engine talks to: start, stop, send, and
// emergency_persist, per spec §4.3.
package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/porby-sdk/porby/pkg/codec"
	"github.com/porby-sdk/porby/pkg/journal"
	"github.com/porby-sdk/porby/pkg/model"
	"github.com/porby-sdk/porby/pkg/pairing"
	"github.com/porby-sdk/porby/pkg/transport/advertiser"
	"github.com/porby-sdk/porby/pkg/transport/netmonitor"
	"github.com/porby-sdk/porby/pkg/transport/wsserver"
)

// Config mirrors the transport-relevant slice of the Engine's
// Configuration: port/advertising/pairing knobs and persistence knobs.
type Config struct {
	Port                int
	BonjourServiceName  string
	AnonymizeDevice     bool
	AdvertiseAppName    bool
	MaxConnections      int
	HeartbeatInterval   time.Duration
	RequiresPairing     bool
	FixedPIN            string
	MaxAttempts         int
	PairingCooldown     time.Duration

	PersistenceEnabled bool
	MaxFileSize        int64
	MaxFileCount       int
	MaxRetention       time.Duration
	FlushOnConnect     bool
	MaxReplayEntries   int
	Protection         journal.ProtectionClass
	JournalDirectory   string

	DeviceName string
	SDKVersion string
	AppName    string
	AppVersion string
}

// Transport is the live coordinator constructed by Start and torn down
// by Stop. The zero value is not usable.
type Transport struct {
	cfg Config

	// mu guards server, advertiser, and restarting: onWiFiAcquired
	// reassigns the first two and flips the third from netmonitor's own
	// goroutine while Send/onViewerAuthenticated/Stop read them from the
	// flush-timer and connection goroutines, per spec §5's single-owner
	// policy — every cross-goroutine access to these three fields goes
	// through this mutex, never a direct field read.
	mu         sync.RWMutex
	server     *wsserver.Server
	advertiser *advertiser.Advertiser
	restarting bool

	pairingMgr *pairing.Manager
	journal    *journal.Journal
	netMonitor *netmonitor.Monitor

	handshakeFn func() model.Handshake
	onCommand   func(connID string, cmd *codec.Command)
	emit        func(model.LogEntry)
	emergencyFlush func()
}

// New constructs a Transport. handshakeFn builds the handshake sent to
// each newly-ready connection; onCommand receives authorized commands;
// emit/emergencyFlush let a per-connection goroutine panic be captured
// as a crash entry and flushed before it propagates, mirroring the
// recovery wired into the engine's own ingest path.
func New(cfg Config, handshakeFn func() model.Handshake, onCommand func(connID string, cmd *codec.Command), emit func(model.LogEntry), emergencyFlush func()) *Transport {
	return &Transport{cfg: cfg, handshakeFn: handshakeFn, onCommand: onCommand, emit: emit, emergencyFlush: emergencyFlush}
}

// Start constructs and starts every owned subsystem, per spec §4.3.
func (t *Transport) Start() error {
	if t.cfg.PersistenceEnabled {
		j, err := journal.New(journal.Config{
			Directory:        t.cfg.JournalDirectory,
			MaxFileSize:      t.cfg.MaxFileSize,
			MaxFileCount:     t.cfg.MaxFileCount,
			MaxRetention:     t.cfg.MaxRetention,
			MaxReplayEntries: t.cfg.MaxReplayEntries,
			Protection:       t.cfg.Protection,
			EncodeBatch:      codec.EncodeBatchForJournal,
			DecodeBatch:      codec.DecodeBatchForJournal,
		})
		if err != nil {
			return fmt.Errorf("transport: start journal: %w", err)
		}
		t.journal = j
	}

	if t.cfg.RequiresPairing {
		t.pairingMgr = pairing.New(pairing.Config{
			FixedCode:   t.cfg.FixedPIN,
			MaxAttempts: t.cfg.MaxAttempts,
			Cooldown:    t.cfg.PairingCooldown,
		})
	}

	if err := t.startServerAndAdvertiser(); err != nil {
		return err
	}

	t.netMonitor = netmonitor.New(t.onWiFiAcquired, t.onWiFiLost)
	t.netMonitor.Start()

	return nil
}

func (t *Transport) startServerAndAdvertiser() error {
	server := wsserver.New(
		wsserver.Config{
			Port:           t.cfg.Port,
			MaxConnections: t.cfg.MaxConnections,
			PingPeriod:     t.cfg.HeartbeatInterval,
		},
		t.pairingMgr,
		wsserver.Callbacks{
			Handshake:               t.buildHandshake,
			OnCommand:               t.onCommand,
			OnViewerAuthenticated:   t.onViewerAuthenticated,
			OnConnectionStateChange: t.onConnectionStateChange,
			Emit:                    t.emit,
			EmergencyFlush:          t.emergencyFlush,
		},
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("transport: start server: %w", err)
	}

	adv := &advertiser.Advertiser{}
	port := t.cfg.Port
	if port == 0 {
		port = addrPort(server.Addr())
	}
	rec := advertiser.Record{
		ServiceName:     t.cfg.BonjourServiceName,
		DeviceName:      t.cfg.DeviceName,
		SDKVersion:      t.cfg.SDKVersion,
		Port:            port,
		PairingRequired: t.cfg.RequiresPairing,
		AdvertiseApp:    t.cfg.AdvertiseAppName,
		AppName:         t.cfg.AppName,
		AppVersion:      t.cfg.AppVersion,
	}
	if err := adv.Start(rec); err != nil {
		// Advertising failure is not fatal to the transport: a viewer
		// can still connect by address even without discovery.
		slog.Error("transport: mdns advertise failed", slog.String("error", err.Error()))
	}

	t.mu.Lock()
	t.server = server
	t.advertiser = adv
	t.mu.Unlock()

	return nil
}

func (t *Transport) currentServer() *wsserver.Server {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.server
}

func (t *Transport) currentAdvertiser() *advertiser.Advertiser {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.advertiser
}

func (t *Transport) buildHandshake() model.Handshake {
	if t.handshakeFn != nil {
		h := t.handshakeFn()
		h.PairingRequired = t.cfg.RequiresPairing
		return h
	}
	return model.Handshake{ProtocolVersion: model.ProtocolVersion, PairingRequired: t.cfg.RequiresPairing}
}

func (t *Transport) onViewerAuthenticated(connID string) {
	if !t.cfg.FlushOnConnect || t.journal == nil {
		return
	}
	entries := t.journal.LoadForReplay()
	if len(entries) == 0 {
		return
	}
	server := t.currentServer()
	if server == nil {
		return
	}
	if err := server.SendReplay(entries, connID); err != nil {
		slog.Error("transport: replay send failed", slog.String("conn", connID), slog.String("error", err.Error()))
		return
	}
	t.journal.ClearReplayedEntries()
}

func (t *Transport) onConnectionStateChange(state wsserver.ConnectionState) {
	if state == wsserver.StateWaiting {
		slog.Info("transport: no connections; new entries will fall to the journal")
	}
}

// Stop stops the monitor, the advertiser (clearing the service
// record), the server, and the journal, and drops pairing state.
func (t *Transport) Stop() {
	if t.netMonitor != nil {
		t.netMonitor.Stop()
	}
	if adv := t.currentAdvertiser(); adv != nil {
		adv.Stop()
	}
	if server := t.currentServer(); server != nil {
		server.Stop()
	}
	if t.journal != nil {
		t.journal.Stop()
	}
	t.pairingMgr = nil
}

// Send delivers batch to authenticated viewers if any are connected,
// otherwise persists it to the journal.
func (t *Transport) Send(batch []model.LogEntry) {
	if len(batch) == 0 {
		return
	}
	if server := t.currentServer(); server != nil && server.HasAuthenticatedViewers() {
		server.Send(batch)
		return
	}
	if t.journal != nil {
		t.journal.Save(batch)
	}
}

// EmergencyPersist writes batch synchronously to the journal, for the
// crash capture path.
func (t *Transport) EmergencyPersist(batch []model.LogEntry) {
	if t.journal != nil {
		t.journal.EmergencySave(batch)
	}
}

// onWiFiAcquired restarts the server+advertiser on the non-WiFi→WiFi
// transition, per spec §4.3: stop, wait 500ms, start, guarded by a
// restarting flag so overlapping transitions don't double-restart.
func (t *Transport) onWiFiAcquired() {
	t.mu.Lock()
	if t.restarting {
		t.mu.Unlock()
		return
	}
	t.restarting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.restarting = false
		t.mu.Unlock()
	}()

	slog.Info("transport: WiFi acquired, restarting listener")
	if server := t.currentServer(); server != nil {
		server.Stop()
	}
	if adv := t.currentAdvertiser(); adv != nil {
		adv.Stop()
	}
	time.Sleep(500 * time.Millisecond)
	if err := t.startServerAndAdvertiser(); err != nil {
		slog.Error("transport: restart after WiFi acquired failed", slog.String("error", err.Error()))
	}
}

// onWiFiLost is logged only; future entries fall to the journal
// naturally once HasAuthenticatedViewers becomes false as connections
// drop, per spec §4.3.
func (t *Transport) onWiFiLost() {
	slog.Info("transport: WiFi lost")
}

func addrPort(addr string) int {
	var port int
	if _, err := fmt.Sscanf(addr, "127.0.0.1:%d", &port); err != nil {
		return 0
	}
	return port
}
