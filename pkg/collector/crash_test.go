package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porby-sdk/porby/pkg/model"
)

func TestCaptureStackReturnsFrames(t *testing.T) {
	frames := captureStack(0)
	require.NotEmpty(t, frames)
	assert.Equal(t, 0, frames[0].Index)
	assert.NotEmpty(t, frames[0].Symbol)
}

func TestBuildCrashEntryPopulatesCrashExtra(t *testing.T) {
	frames := []model.StackFrame{{Index: 0, Symbol: "main.main"}}
	e := buildCrashEntry("SIGSEGV", "", "fatal signal: segmentation violation", frames, "main")

	require.NotNil(t, e.Extra)
	assert.Equal(t, model.ExtraCrash, e.Extra.Kind)
	assert.Equal(t, model.CategoryCrash, e.Category)
	assert.Equal(t, model.LevelFatal, e.Level)
	assert.Equal(t, "SIGSEGV", e.Extra.Crash.Signal)
	assert.Equal(t, "main", e.Extra.Crash.ThreadName)
	assert.Equal(t, frames, e.Extra.Crash.Frames)
}

func TestCrashHandlerStartStopIsIdempotent(t *testing.T) {
	ch := NewCrashHandler(func() {})
	require.NoError(t, ch.Start(func(model.LogEntry) {}))
	require.NoError(t, ch.Start(func(model.LogEntry) {})) // second Start is a no-op
	ch.Stop()
	ch.Stop() // idempotent, must not panic
}

func TestRecoverAndFlushEmitsFlushesThenRepanics(t *testing.T) {
	var emitted model.LogEntry
	var flushed bool

	emit := func(e model.LogEntry) { emitted = e }
	flush := func() { flushed = true }

	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				assert.Equal(t, "boom", r)
			}
		}()
		func() {
			defer RecoverAndFlush(emit, flush)
			panic("boom")
		}()
	}()

	assert.True(t, panicked)
	assert.True(t, flushed)
	require.NotNil(t, emitted.Extra)
	assert.Equal(t, model.ExtraCrash, emitted.Extra.Kind)
	assert.Equal(t, "boom", emitted.Extra.Crash.Reason)
}

func TestRecoverAndFlushIsNoopWithoutPanic(t *testing.T) {
	var called bool
	func() {
		defer RecoverAndFlush(func(model.LogEntry) { called = true }, func() {})
	}()
	assert.False(t, called)
}
