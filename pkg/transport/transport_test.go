package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porby-sdk/porby/pkg/codec"
	"github.com/porby-sdk/porby/pkg/model"
)

func newTestTransport(t *testing.T, cfg Config) *Transport {
	t.Helper()
	cfg.Port = 0
	if cfg.PersistenceEnabled {
		cfg.JournalDirectory = t.TempDir()
	}
	tr := New(cfg, func() model.Handshake { return model.Handshake{SDKVersion: "1.0"} }, nil, nil, nil)
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Stop)
	return tr
}

func dialAndReadHandshake(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	return conn
}

func TestSendWithNoViewerFallsToJournal(t *testing.T) {
	tr := newTestTransport(t, Config{PersistenceEnabled: true, MaxReplayEntries: 100})

	entry := model.NewEntry(model.LevelInfo, model.CategoryApp, "offline", model.SourceSite{})
	tr.Send([]model.LogEntry{entry})

	replayed := tr.journal.LoadForReplay()
	assert.Len(t, replayed, 1)
}

func TestSendWithConnectedViewerGoesOverTheWire(t *testing.T) {
	tr := newTestTransport(t, Config{})
	conn := dialAndReadHandshake(t, tr.server.Addr())

	entry := model.NewEntry(model.LevelInfo, model.CategoryApp, "live", model.SourceSite{})
	tr.Send([]model.LogEntry{entry})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, codec.TypeLog, m.Type)
}

func TestViewerAuthenticatedReplaysThenClearsJournal(t *testing.T) {
	tr := newTestTransport(t, Config{
		PersistenceEnabled: true,
		FlushOnConnect:     true,
		MaxReplayEntries:   100,
		RequiresPairing:    true,
		FixedPIN:           "123456",
	})

	entry := model.NewEntry(model.LevelInfo, model.CategoryApp, "queued", model.SourceSite{})
	tr.journal.Save([]model.LogEntry{entry})

	conn := dialAndReadHandshake(t, tr.server.Addr())

	req, err := codec.EncodePairingRequest("123456")
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	m, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, codec.TypePairingResponse, m.Type)
	require.True(t, m.PairingAccepted)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	m, err = codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, codec.TypeLogReplay, m.Type)

	require.Eventually(t, func() bool {
		return len(tr.journal.LoadForReplay()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmergencyPersistWritesWithoutConnectedViewer(t *testing.T) {
	tr := newTestTransport(t, Config{PersistenceEnabled: true, MaxReplayEntries: 100})

	entry := model.NewEntry(model.LevelFatal, model.CategoryCrash, "crash", model.SourceSite{})
	tr.EmergencyPersist([]model.LogEntry{entry})

	replayed := tr.journal.LoadForReplay()
	require.Len(t, replayed, 1)
	assert.Equal(t, "crash", replayed[0].Message)
}

func TestStopIsIdempotent(t *testing.T) {
	tr := newTestTransport(t, Config{})
	tr.Stop()
	tr.Stop()
}
