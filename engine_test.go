package porby

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porby-sdk/porby/pkg/journal"
	"github.com/porby-sdk/porby/pkg/model"
)

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Transport.Port = 0
	cfg.Collectors = 0 // no auto collectors; these tests drive Ingest directly
	cfg.Persistence.Enabled = true
	cfg.Persistence.Directory = t.TempDir()
	cfg.Limits.FlushInterval = 16 * time.Millisecond
	return cfg
}

func TestStartIsIdempotentAndStopIsIdempotent(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	require.NoError(t, e.Start(cfg))
	require.NoError(t, e.Start(cfg)) // second Start is a no-op
	e.Stop()
	e.Stop() // idempotent, must not panic
}

func TestShouldLogRespectsGlobalAndPerCategoryMinimums(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.Filter.GlobalMinLevel = model.LevelWarning
	cfg.Filter.PerCategoryMinLevel = map[model.Category]model.LogLevel{
		model.CategoryNetwork: model.LevelDebug,
	}
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	assert.False(t, e.ShouldLog(model.LevelInfo, model.CategoryApp))      // below global min
	assert.True(t, e.ShouldLog(model.LevelWarning, model.CategoryApp))    // meets global min
	assert.True(t, e.ShouldLog(model.LevelDebug, model.CategoryNetwork))  // per-category override
}

func TestShouldLogFalseForDisabledCategory(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.Filter.DisabledCategories = map[model.Category]bool{model.CategoryUI: true}
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	assert.False(t, e.ShouldLog(model.LevelFatal, model.CategoryUI))
}

func TestShouldLogFalseWhenNotRunning(t *testing.T) {
	e := New()
	assert.False(t, e.ShouldLog(model.LevelFatal, model.CategoryApp))
}

func TestIngestPriorityEntryBypassesRateLimit(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.Limits.MaxLogsPerSecond = 1
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	e.Ingest(model.NewEntry(model.LevelInfo, model.CategoryApp, "info1", model.SourceSite{}))
	e.Ingest(model.NewEntry(model.LevelInfo, model.CategoryApp, "info2", model.SourceSite{})) // dropped
	e.Ingest(model.NewEntry(model.LevelError, model.CategoryApp, "error1", model.SourceSite{}))

	main, priority := e.buf.Len()
	assert.Equal(t, 2, main) // info1 and error1; info2 rate-limited
	assert.Equal(t, 1, priority)
}

func TestEmergencyFlushWritesToJournal(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	require.NoError(t, e.Start(cfg))

	e.Ingest(model.NewEntry(model.LevelFatal, model.CategoryCrash, "crash", model.SourceSite{}))
	e.EmergencyFlush()

	main, _ := e.buf.Len()
	assert.Equal(t, 0, main) // drained by EmergencyFlush

	files, err := filepath.Glob(filepath.Join(cfg.Persistence.Directory, journal.FilePrefix+"_*.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, files) // no viewer is connected, so the batch is in the journal

	e.Stop()
}

func TestHandleMemoryWarningHalvesCapacity(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.Limits.MaxBufferCount = 100
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	for i := 0; i < 10; i++ {
		e.Ingest(model.NewEntry(model.LevelInfo, model.CategoryApp, "x", model.SourceSite{}))
	}
	e.HandleMemoryWarning()

	assert.Equal(t, 50, e.buf.MainCapacity())
	main, _ := e.buf.Len()
	assert.Equal(t, 0, main)
}

func TestFlushTimerDrainsOnTick(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	e.Ingest(model.NewEntry(model.LevelInfo, model.CategoryApp, "ticked", model.SourceSite{}))

	require.Eventually(t, func() bool {
		main, priority := e.buf.Len()
		return main == 0 && priority == 0
	}, time.Second, 5*time.Millisecond)
}

func TestLogSkipsIngestWhenShouldLogIsFalse(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.Filter.GlobalMinLevel = model.LevelError
	require.NoError(t, e.Start(cfg))
	defer e.Stop()

	e.Log(model.LevelInfo, model.CategoryApp, "ignored", model.SourceSite{})
	main, priority := e.buf.Len()
	assert.Equal(t, 0, main)
	assert.Equal(t, 0, priority)
}

func TestStartIsNoopWhenDebugBuildsOnlyAndNotADebugBuild(t *testing.T) {
	e := New()
	cfg := testConfig(t)
	cfg.DebugBuildsOnly = true
	require.NoError(t, e.Start(cfg))

	// isDebugBuild() is false without the porbydebug build tag, so
	// Start must leave the engine stopped rather than running.
	assert.False(t, e.ShouldLog(model.LevelFatal, model.CategoryApp))
}

func TestDefaultReturnsSameInstance(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}
