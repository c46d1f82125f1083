package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelSeverity(t *testing.T) {
	cases := []struct {
		name     string
		level    LogLevel
		expected int
	}{
		{"verbose", LevelVerbose, 1},
		{"debug", LevelDebug, 5},
		{"info", LevelInfo, 9},
		{"warning", LevelWarning, 13},
		{"error", LevelError, 17},
		{"fatal", LevelFatal, 21},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.level.Severity())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{"verbose", "verbose", LevelVerbose},
		{"debug", "debug", LevelDebug},
		{"info", "info", LevelInfo},
		{"warning", "warning", LevelWarning},
		{"error", "error", LevelError},
		{"fatal", "fatal", LevelFatal},
		{"invalid falls back to info", "nonsense", LevelInfo},
		{"empty falls back to info", "", LevelInfo},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, ParseLogLevel(c.input))
		})
	}
}

func TestLogLevelIsPriority(t *testing.T) {
	assert.False(t, LevelVerbose.IsPriority())
	assert.False(t, LevelInfo.IsPriority())
	assert.False(t, LevelWarning.IsPriority())
	assert.True(t, LevelError.IsPriority())
	assert.True(t, LevelFatal.IsPriority())
}

func TestLogLevelJSONRoundTrip(t *testing.T) {
	for _, lvl := range []LogLevel{LevelVerbose, LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal} {
		b, err := lvl.MarshalJSON()
		assert.NoError(t, err)

		var out LogLevel
		assert.NoError(t, out.UnmarshalJSON(b))
		assert.Equal(t, lvl, out)
	}
}

func TestCategoryEqualityIgnoresGlyph(t *testing.T) {
	a := NewCategoryWithGlyph("app", "📱")
	b := NewCategory("app")
	assert.Equal(t, a, b, "Category equality must compare identifier only, per MapKey semantics")
}
