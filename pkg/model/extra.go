package model

import (
	"encoding/json"
	"fmt"
)

// LogExtraKind tags the domain-specific record carried by a LogExtra.
type LogExtraKind int

const (
	ExtraNone LogExtraKind = iota
	ExtraNetwork
	ExtraCrash
	ExtraUI
	ExtraPerformance
)

// NetworkExtra describes one intercepted HTTP/HTTPS exchange.
type NetworkExtra struct {
	Method          string
	URL             string
	StatusCode      int
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     []byte
	ResponseBody    []byte
	DurationMS      int64
	BytesSent       int64
	BytesReceived   int64
	Error           string
}

// StackFrame is one parsed frame of a captured crash stack. Frames that
// could not be demangled degrade to carrying only RawSymbol.
type StackFrame struct {
	Index     int
	Module    string
	Address   uint64
	Symbol    string
	RawSymbol string
}

// CrashExtra describes a fatal signal or uncaught exception.
type CrashExtra struct {
	Signal        string
	ExceptionType string
	Reason        string
	Frames        []StackFrame
	ThreadName    string
}

// UIExtra describes a navigation or view lifecycle event.
type UIExtra struct {
	EventType string
	ViewName  string
	Detail    string
}

// PerformanceExtra describes one performance sample.
type PerformanceExtra struct {
	CPUPercent  float64
	MemoryMB    float64
	FPS         float64
	DiskReadKB  float64
	DiskWriteKB float64
}

// LogExtra is a tagged union over {Network, Crash, UI, Performance}.
// At most one of the embedded pointers is non-nil, selected by Kind.
type LogExtra struct {
	Kind        LogExtraKind
	Network     *NetworkExtra
	Crash       *CrashExtra
	UI          *UIExtra
	Performance *PerformanceExtra
}

func NetworkExtraOf(e NetworkExtra) LogExtra { return LogExtra{Kind: ExtraNetwork, Network: &e} }
func CrashExtraOf(e CrashExtra) LogExtra     { return LogExtra{Kind: ExtraCrash, Crash: &e} }
func UIExtraOf(e UIExtra) LogExtra           { return LogExtra{Kind: ExtraUI, UI: &e} }
func PerformanceExtraOf(e PerformanceExtra) LogExtra {
	return LogExtra{Kind: ExtraPerformance, Performance: &e}
}

// wireExtra is LogExtra's wire shape: a "kind" discriminator plus
// whichever one of the four payload fields Kind selects, mirroring the
// Kind-driven Marshal/UnmarshalJSON pattern LogLevel and MetadataValue
// already use.
type wireExtra struct {
	Kind        string            `json:"kind"`
	Network     *NetworkExtra     `json:"network,omitempty"`
	Crash       *CrashExtra       `json:"crash,omitempty"`
	UI          *UIExtra          `json:"ui,omitempty"`
	Performance *PerformanceExtra `json:"performance,omitempty"`
}

func (k LogExtraKind) wireName() string {
	switch k {
	case ExtraNetwork:
		return "network"
	case ExtraCrash:
		return "crash"
	case ExtraUI:
		return "ui"
	case ExtraPerformance:
		return "performance"
	default:
		return ""
	}
}

func (e LogExtra) MarshalJSON() ([]byte, error) {
	w := wireExtra{Kind: e.Kind.wireName()}
	switch e.Kind {
	case ExtraNetwork:
		w.Network = e.Network
	case ExtraCrash:
		w.Crash = e.Crash
	case ExtraUI:
		w.UI = e.UI
	case ExtraPerformance:
		w.Performance = e.Performance
	}
	return json.Marshal(w)
}

func (e *LogExtra) UnmarshalJSON(b []byte) error {
	var w wireExtra
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "network":
		if w.Network == nil {
			return fmt.Errorf("model: extra kind %q missing its network payload", w.Kind)
		}
		*e = NetworkExtraOf(*w.Network)
	case "crash":
		if w.Crash == nil {
			return fmt.Errorf("model: extra kind %q missing its crash payload", w.Kind)
		}
		*e = CrashExtraOf(*w.Crash)
	case "ui":
		if w.UI == nil {
			return fmt.Errorf("model: extra kind %q missing its ui payload", w.Kind)
		}
		*e = UIExtraOf(*w.UI)
	case "performance":
		if w.Performance == nil {
			return fmt.Errorf("model: extra kind %q missing its performance payload", w.Kind)
		}
		*e = PerformanceExtraOf(*w.Performance)
	case "":
		*e = LogExtra{}
	default:
		return fmt.Errorf("model: unknown extra kind %q", w.Kind)
	}
	return nil
}
