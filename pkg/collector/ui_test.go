package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porby-sdk/porby/pkg/model"
)

func TestUICollectorEmitBuildsUIExtra(t *testing.T) {
	u := NewUICollector()
	var captured model.LogEntry
	require.NoError(t, u.Start(func(e model.LogEntry) { captured = e }))

	u.Emit("viewAppeared", "SettingsScreen", "opened from menu")

	require.NotNil(t, captured.Extra)
	assert.Equal(t, model.ExtraUI, captured.Extra.Kind)
	assert.Equal(t, model.CategoryUI, captured.Category)
	assert.Equal(t, "viewAppeared", captured.Extra.UI.EventType)
	assert.Equal(t, "SettingsScreen", captured.Extra.UI.ViewName)
	assert.Equal(t, "opened from menu", captured.Extra.UI.Detail)
}

func TestUICollectorEmitBeforeStartIsNoop(t *testing.T) {
	u := NewUICollector()
	assert.NotPanics(t, func() { u.Emit("viewAppeared", "X", "") })
}

func TestUICollectorEmitAfterStopIsNoop(t *testing.T) {
	u := NewUICollector()
	var count int
	require.NoError(t, u.Start(func(model.LogEntry) { count++ }))
	u.Stop()
	u.Emit("viewAppeared", "X", "")
	assert.Equal(t, 0, count)
}

func TestLifecycleCollectorEmitBuildsUIExtra(t *testing.T) {
	l := NewLifecycleCollector()
	var captured model.LogEntry
	require.NoError(t, l.Start(func(e model.LogEntry) { captured = e }))

	l.Emit("didEnterBackground", "user pressed home")

	require.NotNil(t, captured.Extra)
	assert.Equal(t, model.ExtraUI, captured.Extra.Kind)
	assert.Equal(t, model.CategoryLifecycle, captured.Category)
	assert.Equal(t, "didEnterBackground", captured.Extra.UI.EventType)
	assert.Equal(t, "user pressed home", captured.Extra.UI.Detail)
}

func TestLifecycleCollectorEmitBeforeStartIsNoop(t *testing.T) {
	l := NewLifecycleCollector()
	assert.NotPanics(t, func() { l.Emit("didEnterBackground", "") })
}

func TestLifecycleCollectorEmitAfterStopIsNoop(t *testing.T) {
	l := NewLifecycleCollector()
	var count int
	require.NoError(t, l.Start(func(model.LogEntry) { count++ }))
	l.Stop()
	l.Emit("didEnterBackground", "")
	assert.Equal(t, 0, count)
}
