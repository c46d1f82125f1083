package porby

import (
	"fmt"
	"time"

	"github.com/porby-sdk/porby/pkg/journal"
	"github.com/porby-sdk/porby/pkg/model"
)

// CollectorKind is a bitset selecting which built-in collectors Start
// registers, per spec §4.2 "registers collectors indicated by the
// bitset".
type CollectorKind uint32

const (
	CollectorNetwork CollectorKind = 1 << iota
	CollectorUI
	CollectorLifecycle
	CollectorPerformance
	CollectorCrash

	CollectorAll = CollectorNetwork | CollectorUI | CollectorLifecycle | CollectorPerformance | CollectorCrash
)

func (c CollectorKind) has(bit CollectorKind) bool { return c&bit != 0 }

// BackgroundPolicy controls whether the flush timer and collectors
// keep running while the host application is backgrounded.
type BackgroundPolicy int

const (
	BackgroundContinue BackgroundPolicy = iota
	BackgroundPause
)

// FilterConfig gates which entries should_log admits.
type FilterConfig struct {
	GlobalMinLevel      model.LogLevel
	PerCategoryMinLevel map[model.Category]model.LogLevel
	DisabledCategories  map[model.Category]bool
}

// TransportConfig configures the WebSocket server, advertiser, and
// pairing manager.
type TransportConfig struct {
	Port               int
	BonjourServiceName string
	AnonymizeDevice    bool
	AdvertiseAppName   bool
	MaxConnections     int
	HeartbeatInterval  time.Duration

	RequiresPairing bool
	FixedPIN        string
	MaxAttempts     int
	PairingCooldown time.Duration
}

// PersistenceConfig configures the on-disk journal.
type PersistenceConfig struct {
	Enabled          bool
	Directory        string
	MaxFileSize      int64
	MaxFileCount     int
	MaxRetention     time.Duration
	FlushOnConnect   bool
	MaxReplayEntries int
	Protection       journal.ProtectionClass
}

// PrivacyConfig configures redaction and body capture limits.
type PrivacyConfig struct {
	RedactedHeaders      []string
	RedactedMetadataKeys []string
	RedactedQueryParams  []string
	MaxBodyCaptureBytes  int64
	Placeholder          string
}

// LimitsConfig configures buffering, flushing, and rate limiting.
type LimitsConfig struct {
	MaxBufferCount              int
	FlushInterval               time.Duration
	MaxLogsPerSecond            int
	PerformanceSamplingInterval time.Duration
	BackgroundPolicy            BackgroundPolicy
}

// Config is the Engine's immutable-after-start configuration. It is a
// plain struct built by the caller and moved into the Engine at Start
// — this is an embedded SDK, not a CLI server, so there is no
// flag/env loader for it (cmd/porbydemo has its own, separate, for the
// harness's command line).
type Config struct {
	Enabled         bool
	DebugBuildsOnly bool
	Collectors      CollectorKind

	Filter      FilterConfig
	Transport   TransportConfig
	Persistence PersistenceConfig
	Privacy     PrivacyConfig
	Limits      LimitsConfig

	DeviceName string
	SDKVersion string
	AppName    string
	AppVersion string
}

// DefaultConfig returns a Config with every documented default applied:
// port 9394, 1000/100-entry ring, 2s flush interval, no rate limit, no
// pairing, persistence disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Collectors: CollectorAll,
		Transport: TransportConfig{
			Port:              9394,
			HeartbeatInterval: 30 * time.Second,
			MaxAttempts:       5,
			PairingCooldown:   30 * time.Second,
		},
		Persistence: PersistenceConfig{
			MaxFileSize:      5 * 1024 * 1024,
			MaxFileCount:     10,
			MaxRetention:     7 * 24 * time.Hour,
			MaxReplayEntries: 500,
		},
		Privacy: PrivacyConfig{
			Placeholder: "<redacted>",
		},
		Limits: LimitsConfig{
			MaxBufferCount:              1000,
			FlushInterval:               2 * time.Second,
			PerformanceSamplingInterval: 10 * time.Second,
		},
		SDKVersion: "1.0.0",
	}
}

// validate checks the config for the non-fatal conditions spec §4.2/§6
// name and returns one warning string per violated key; the SDK still
// runs with whatever was configured. Keys match spec §6's
// "Configuration warnings" table exactly, for grep-ability in a
// platform log.
func (c Config) validate() []string {
	var warnings []string

	if c.Transport.Port != 0 && c.Transport.Port < 1024 {
		warnings = append(warnings, fmt.Sprintf("transport.port: %d is a privileged port", c.Transport.Port))
	}
	if c.Limits.FlushInterval < 16*time.Millisecond || c.Limits.FlushInterval > 5*time.Second {
		warnings = append(warnings, fmt.Sprintf("limits.flushInterval: %s outside [16ms, 5s]", c.Limits.FlushInterval))
	}
	if c.Persistence.Enabled && c.Persistence.MaxFileSize == 0 {
		warnings = append(warnings, "persistence.maxFileSize: 0 while persistence is enabled")
	}
	if !c.Transport.RequiresPairing {
		warnings = append(warnings, "transport.requiresPairing: false — any local peer can connect without a PIN")
	}
	if c.Privacy.MaxBodyCaptureBytes > 100*1024 {
		warnings = append(warnings, fmt.Sprintf("privacy.maxBodySize: %d exceeds 100KiB", c.Privacy.MaxBodyCaptureBytes))
	}

	return warnings
}
