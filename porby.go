// Package porby is an in-process logging SDK: it ingests structured
// log entries from application code and from a set of collectors
// (network interception, UI navigation, lifecycle events, performance
// metrics, crash/signal capture), buffers them with bounded memory,
// and streams them over a local-network WebSocket channel to a viewer
// that discovers the SDK via Bonjour/mDNS. When no viewer is
// connected, entries fall to an on-disk rotating journal and replay
// on the next authenticated connection.
//
// The Engine is the single coordinator: construct one with New, call
// Start with a Config, then Log/Ingest from application code or a
// collector. Stop tears everything down; it is safe to call more than
// once.
package porby

import "github.com/porby-sdk/porby/pkg/model"

// Re-exported value types so callers of this package don't need to
// import pkg/model directly for everyday use.
type (
	LogLevel   = model.LogLevel
	Category   = model.Category
	LogEntry   = model.LogEntry
	Metadata   = model.Metadata
	SourceSite = model.SourceSite
)

const (
	LevelVerbose = model.LevelVerbose
	LevelDebug   = model.LevelDebug
	LevelInfo    = model.LevelInfo
	LevelWarning = model.LevelWarning
	LevelError   = model.LevelError
	LevelFatal   = model.LevelFatal
)

var (
	CategoryApp         = model.CategoryApp
	CategoryNetwork     = model.CategoryNetwork
	CategoryCrash       = model.CategoryCrash
	CategoryUI          = model.CategoryUI
	CategoryBluetooth   = model.CategoryBluetooth
	CategoryLifecycle   = model.CategoryLifecycle
	CategoryPerformance = model.CategoryPerformance
)
