package porby

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/porby-sdk/porby/pkg/buffer"
	"github.com/porby-sdk/porby/pkg/codec"
	"github.com/porby-sdk/porby/pkg/collector"
	"github.com/porby-sdk/porby/pkg/model"
	"github.com/porby-sdk/porby/pkg/redact"
	"github.com/porby-sdk/porby/pkg/transport"
)

// engineState is the Engine's process-wide lifecycle, per spec §3's
// "Lifecycles": start→running→stopped.
type engineState int

const (
	stateStopped engineState = iota
	stateRunning
)

// hardCapBytes/hardCapBytesPerEntry implement spec §4.1's estimated-
// usage hard cap (default 5MB at 512B/entry); DrainIfOverEstimatedBytes
// in pkg/buffer already knows the 512B default, this is just the cap.
const hardCapBytes = 5 * 1024 * 1024

// registeredCollector pairs a running collector with a name, purely so
// Stop can log which one is being torn down.
type registeredCollector struct {
	name string
	c    collector.Collector
}

// Engine is the process-wide coordinator: gatekeeping, rate limiting,
// memory pressure response, collector lifecycle, buffer ownership,
// timed flush, and emergency flush, per spec §4.2. The zero value is
// not usable; construct with New.
//
// Spec §9 calls for "an owned instance created at start and accessed
// via a once-initialized accessor" rather than a hidden global. New
// gives every caller their own instance; Default (below) is the
// once-initialized accessor for callers that want exactly one
// process-wide Engine without wiring it through explicitly.
type Engine struct {
	mu    sync.Mutex
	state engineState
	cfg   Config

	buf     *buffer.Ring
	limiter *rateLimiter
	tr      *transport.Transport

	collectors []registeredCollector
	networkRT  *collector.NetworkCollector

	flushCancel context.CancelFunc
	flushDone   chan struct{}
}

// New constructs an unstarted Engine.
func New() *Engine {
	return &Engine{}
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the process-wide Engine, constructing it on first
// call.
func Default() *Engine {
	defaultOnce.Do(func() { defaultEngine = New() })
	return defaultEngine
}

// Start validates cfg (logging warnings, never failing), builds the
// buffer/limiter/transport, registers the bitset-selected collectors,
// and starts the flush timer. Start is idempotent: a second call while
// already running is a no-op, per spec §4.2.
func (e *Engine) Start(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateRunning {
		return nil
	}

	for _, w := range cfg.validate() {
		slog.Warn("porby: configuration warning", slog.String("warning", w))
	}

	if !cfg.Enabled {
		slog.Info("porby: engine disabled by configuration, start is a no-op")
		return nil
	}

	if cfg.DebugBuildsOnly && !isDebugBuild() {
		slog.Info("porby: debugBuildsOnly is set and this is not a debug build, start is a no-op")
		return nil
	}

	e.cfg = cfg
	e.buf = buffer.New(cfg.Limits.MaxBufferCount, buffer.DefaultPriorityCapacity)
	e.limiter = newRateLimiter(cfg.Limits.MaxLogsPerSecond)

	e.tr = transport.New(transport.Config{
		Port:               cfg.Transport.Port,
		BonjourServiceName: cfg.Transport.BonjourServiceName,
		AnonymizeDevice:    cfg.Transport.AnonymizeDevice,
		AdvertiseAppName:   cfg.Transport.AdvertiseAppName,
		MaxConnections:     cfg.Transport.MaxConnections,
		HeartbeatInterval:  cfg.Transport.HeartbeatInterval,
		RequiresPairing:    cfg.Transport.RequiresPairing,
		FixedPIN:           cfg.Transport.FixedPIN,
		MaxAttempts:        cfg.Transport.MaxAttempts,
		PairingCooldown:    cfg.Transport.PairingCooldown,

		PersistenceEnabled: cfg.Persistence.Enabled,
		MaxFileSize:        cfg.Persistence.MaxFileSize,
		MaxFileCount:       cfg.Persistence.MaxFileCount,
		MaxRetention:       cfg.Persistence.MaxRetention,
		FlushOnConnect:     cfg.Persistence.FlushOnConnect,
		MaxReplayEntries:   cfg.Persistence.MaxReplayEntries,
		Protection:         cfg.Persistence.Protection,
		JournalDirectory:   cfg.Persistence.Directory,

		DeviceName: cfg.DeviceName,
		SDKVersion: cfg.SDKVersion,
		AppName:    cfg.AppName,
		AppVersion: cfg.AppVersion,
	}, e.buildHandshake, e.onCommand, e.Ingest, e.EmergencyFlush)

	if err := e.tr.Start(); err != nil {
		return err
	}

	e.registerCollectors(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	e.flushCancel = cancel
	e.flushDone = make(chan struct{})
	go e.runFlushTimer(ctx, cfg.Limits.FlushInterval)

	e.state = stateRunning
	return nil
}

func (e *Engine) buildHandshake() model.Handshake {
	return model.Handshake{
		ProtocolVersion: model.ProtocolVersion,
		SDKVersion:      e.cfg.SDKVersion,
		App:             model.AppInfo{Name: e.cfg.AppName, Version: e.cfg.AppVersion},
	}
}

func (e *Engine) onCommand(connID string, cmd *codec.Command) {
	// Remote control of filtering/levels from an authenticated viewer
	// is outside this module's core per spec §1 ("the public logging
	// façade" owns the mutation entry points); the Engine only needs to
	// not crash on receipt. A host wiring a full façade would dispatch
	// cmd.Kind into its own Config mutation here.
	slog.Debug("porby: command received", slog.String("conn", connID), slog.String("kind", string(cmd.Kind)))
}

// registerCollectors builds and starts the collectors named by
// cfg.Collectors, in bit order, so Stop can tear them down in reverse.
func (e *Engine) registerCollectors(cfg Config) {
	if cfg.Collectors.has(CollectorNetwork) {
		var r *redact.Redactor
		if len(cfg.Privacy.RedactedHeaders) > 0 || len(cfg.Privacy.RedactedQueryParams) > 0 {
			r = redact.New(cfg.Privacy.RedactedHeaders, cfg.Privacy.RedactedMetadataKeys, cfg.Privacy.RedactedQueryParams, cfg.Privacy.Placeholder)
		}
		nc := collector.NewNetworkCollector(collector.NetworkCollectorConfig{
			Redactor:     r,
			MaxBodyBytes: cfg.Privacy.MaxBodyCaptureBytes,
		})
		e.startCollector("network", nc)
		e.networkRT = nc
	}
	if cfg.Collectors.has(CollectorUI) {
		e.startCollector("ui", collector.NewUICollector())
	}
	if cfg.Collectors.has(CollectorLifecycle) {
		e.startCollector("lifecycle", collector.NewLifecycleCollector())
	}
	if cfg.Collectors.has(CollectorPerformance) {
		interval := cfg.Limits.PerformanceSamplingInterval
		e.startCollector("performance", collector.NewPerformanceCollector(interval, nil))
	}
	if cfg.Collectors.has(CollectorCrash) {
		e.startCollector("crash", collector.NewCrashHandler(e.EmergencyFlush))
	}
}

func (e *Engine) startCollector(name string, c collector.Collector) {
	if err := c.Start(e.Ingest); err != nil {
		slog.Error("porby: collector start failed", slog.String("collector", name), slog.String("error", err.Error()))
		return
	}
	e.collectors = append(e.collectors, registeredCollector{name: name, c: c})
}

// NetworkTransport returns the RoundTripper the network collector
// installed, for the host to wrap into its own http.Client. Returns
// nil if CollectorNetwork was not enabled at Start.
func (e *Engine) NetworkTransport() *collector.NetworkCollector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.networkRT
}

// Stop stops collectors in reverse registration order, cancels the
// flush timer, drains once, stops transport, and clears state. Stop is
// idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRunning {
		return
	}

	for i := len(e.collectors) - 1; i >= 0; i-- {
		e.collectors[i].c.Stop()
	}
	e.collectors = nil
	e.networkRT = nil

	if e.flushCancel != nil {
		e.flushCancel()
		<-e.flushDone
	}

	if e.buf != nil {
		if batch := e.buf.Drain(); len(batch) > 0 && e.tr != nil {
			e.tr.Send(batch)
		}
	}

	if e.tr != nil {
		e.tr.Stop()
	}

	e.state = stateStopped
}

// ShouldLog reports whether an entry at level/category would currently
// be accepted, per spec §4.2's exact predicate. Producers call this
// before doing any expensive message formatting.
func (e *Engine) ShouldLog(level model.LogLevel, category model.Category) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRunning {
		return false
	}
	if e.cfg.Filter.DisabledCategories[category] {
		return false
	}

	min, ok := e.cfg.Filter.PerCategoryMinLevel[category]
	if !ok {
		min = e.cfg.Filter.GlobalMinLevel
	}
	return level >= min
}

// Ingest appends an entry to the buffer on the caller's goroutine,
// taking the Engine, rate-limiter and buffer mutexes, each briefly.
// Non-priority entries over the configured rate are dropped silently;
// error/fatal entries always get through. When the estimated-bytes
// hard cap is crossed, the drained batch is also handed to the
// transport on the caller's goroutine.
func (e *Engine) Ingest(entry model.LogEntry) {
	defer collector.RecoverAndFlush(e.Ingest, e.EmergencyFlush)

	e.mu.Lock()
	running := e.state == stateRunning
	buf := e.buf
	limiter := e.limiter
	tr := e.tr
	e.mu.Unlock()

	if !running || buf == nil {
		return
	}

	if !entry.Level.IsPriority() && limiter.exceeded() {
		return
	}

	buf.Append(entry)

	if batch := buf.DrainIfOverEstimatedBytes(hardCapBytes, 0); batch != nil {
		if tr != nil {
			tr.Send(batch)
		}
	}
}

// HandleMemoryWarning is the Go-idiomatic stand-in for spec §9's
// "memory-warning observer": there is no portable way to subscribe to
// OS memory pressure from Go, so the host calls this directly from
// whatever platform hook it has (e.g. didReceiveMemoryWarning,
// onTrimMemory). It drains and sends the current buffer, then halves
// the main ring's capacity, per spec §4.1.
func (e *Engine) HandleMemoryWarning() {
	e.mu.Lock()
	buf := e.buf
	tr := e.tr
	e.mu.Unlock()

	if buf == nil {
		return
	}
	if batch := buf.DrainAndHalve(); len(batch) > 0 && tr != nil {
		tr.Send(batch)
	}
}

// EmergencyFlush synchronously drains the buffer, writes it to the
// journal, and makes a best-effort attempt to send it to any live
// peer, per spec §4.2/§4.9. It must be safe to call from a crash
// handler: it holds the Engine's mutex only long enough to read the
// buffer and transport, then takes the buffer's own brief mutex for
// the drain.
func (e *Engine) EmergencyFlush() {
	e.mu.Lock()
	buf := e.buf
	tr := e.tr
	e.mu.Unlock()

	if buf == nil || tr == nil {
		return
	}
	batch := buf.Drain()
	if len(batch) == 0 {
		return
	}
	tr.EmergencyPersist(batch)
	tr.Send(batch)
}

func (e *Engine) runFlushTimer(ctx context.Context, interval time.Duration) {
	defer close(e.flushDone)
	defer collector.RecoverAndFlush(e.Ingest, e.EmergencyFlush)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			buf := e.buf
			tr := e.tr
			e.mu.Unlock()
			if buf == nil {
				continue
			}
			if batch := buf.Drain(); len(batch) > 0 && tr != nil {
				tr.Send(batch)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Log constructs and ingests an entry in one call — the minimal
// producer-facing convenience the root package exposes; a richer
// façade (string formatting, call-site capture) is out of scope per
// spec §1.
func (e *Engine) Log(level model.LogLevel, category model.Category, message string, source model.SourceSite) {
	if !e.ShouldLog(level, category) {
		return
	}
	e.Ingest(model.NewEntry(level, category, message, source))
}

// LogUIEvent reports a UI navigation event through the registered UI
// collector, if CollectorUI was enabled at Start.
func (e *Engine) LogUIEvent(eventType, viewName, detail string) {
	e.withCollector("ui", func(c collector.Collector) {
		if uc, ok := c.(*collector.UICollector); ok {
			uc.Emit(eventType, viewName, detail)
		}
	})
}

// LogLifecycleEvent reports an app lifecycle event through the
// registered lifecycle collector, if CollectorLifecycle was enabled at
// Start.
func (e *Engine) LogLifecycleEvent(eventType, detail string) {
	e.withCollector("lifecycle", func(c collector.Collector) {
		if lc, ok := c.(*collector.LifecycleCollector); ok {
			lc.Emit(eventType, detail)
		}
	})
}

func (e *Engine) withCollector(name string, fn func(collector.Collector)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rc := range e.collectors {
		if rc.name == name {
			fn(rc.c)
			return
		}
	}
}
