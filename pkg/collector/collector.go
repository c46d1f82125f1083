// Package collector defines the narrow contracts the Engine uses to
// talk to the external collaborators named in spec §1 as out-of-scope:
// the network interceptor, UI navigation/lifecycle observer, and
// performance sampler. Each satisfies a single "emit via callback"
// contract (spec §4.8) — this package owns the interfaces and a
// reference, testable implementation of each, not a production
// network interceptor or UI swizzler.
package collector

import "github.com/porby-sdk/porby/pkg/model"

// EmitFunc is how a collector hands a constructed entry to the
// Engine. It must not block the collector's own capture path.
type EmitFunc func(model.LogEntry)

// Collector is the lifecycle every collector kind shares: Start wires
// the emit callback and begins capturing, Stop releases any resources
// (hooks, tickers, interceptor registration). The Engine starts
// collectors in the order given by its enabled-collectors bitset, per
// spec §4.2, and stops them in reverse registration order.
type Collector interface {
	Start(emit EmitFunc) error
	Stop()
}

// classifyStatus maps an HTTP status code (or its absence, on
// transport failure) to a LogLevel per spec §4.8: 2xx=info,
// 3xx/4xx=warning, 5xx or missing-with-error=error,
// missing-without-error=info.
func classifyStatus(statusCode int, hasError bool) model.LogLevel {
	switch {
	case statusCode == 0 && hasError:
		return model.LevelError
	case statusCode == 0:
		return model.LevelInfo
	case statusCode >= 500:
		return model.LevelError
	case statusCode >= 300:
		return model.LevelWarning
	default:
		return model.LevelInfo
	}
}
