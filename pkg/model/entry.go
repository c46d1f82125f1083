package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceSite names the file/function/line a LogEntry was produced at.
type SourceSite struct {
	File     string
	Function string
	Line     int
}

// LogEntry is one immutable log record. Producers construct it through
// NewEntry, which populates ID and Timestamp; the codec rebuilds
// decoded entries field by field.
type LogEntry struct {
	ID        string
	Timestamp time.Time
	Level     LogLevel
	Category  Category
	Message   string
	Source    SourceSite
	Metadata  Metadata
	Extra     *LogExtra
}

// NewEntry constructs an immutable LogEntry, assigning a fresh 128-bit
// random ID and the current wall-clock timestamp.
func NewEntry(level LogLevel, category Category, message string, source SourceSite) LogEntry {
	return LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Level:     level,
		Category:  category,
		Message:   message,
		Source:    source,
	}
}

// WithMetadata returns a copy of the entry carrying the given metadata.
// LogEntry is treated as immutable once constructed, so mutators return
// copies rather than mutating in place.
func (e LogEntry) WithMetadata(m Metadata) LogEntry {
	e.Metadata = m
	return e
}

// WithExtra returns a copy of the entry carrying the given extra.
func (e LogEntry) WithExtra(extra LogExtra) LogEntry {
	e.Extra = &extra
	return e
}
