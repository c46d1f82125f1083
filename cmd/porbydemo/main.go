// porbydemo is a runnable harness for the porby SDK: it starts the
// Engine with a flag-driven Config, emits a synthetic log entry on a
// ticker so there's wire traffic to observe, and blocks until
// SIGINT/SIGTERM. It exists to give every wire-level and persistence
// behavior in this repo a path a developer can actually run, the way
// a host application embedding the SDK would.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/porby-sdk/porby"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		port            int
		deviceName      string
		appName         string
		appVersion      string
		requiresPairing bool
		fixedPIN        string
		journalDir      string
		tickInterval    time.Duration
	)

	flag.IntVar(&port, "port", 9394, "WebSocket listener port (0 = ephemeral)")
	flag.StringVar(&deviceName, "device-name", defaultHostname(), "device name advertised over mDNS")
	flag.StringVar(&appName, "app-name", "porbydemo", "app name in the handshake and mDNS record")
	flag.StringVar(&appVersion, "app-version", "0.0.0", "app version in the handshake and mDNS record")
	flag.BoolVar(&requiresPairing, "requires-pairing", true, "require PIN pairing before delivering logs")
	flag.StringVar(&fixedPIN, "fixed-pin", "", "use this PIN instead of generating one (empty = generate)")
	flag.StringVar(&journalDir, "journal-dir", "", "persistence journal directory (empty = disabled)")
	flag.DurationVar(&tickInterval, "tick-interval", 2*time.Second, "interval between synthetic log entries")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := porby.DefaultConfig()
	cfg.DeviceName = deviceName
	cfg.AppName = appName
	cfg.AppVersion = appVersion
	cfg.Transport.Port = port
	cfg.Transport.RequiresPairing = requiresPairing
	cfg.Transport.FixedPIN = fixedPIN
	cfg.Persistence.Enabled = journalDir != ""
	cfg.Persistence.Directory = journalDir
	cfg.Persistence.FlushOnConnect = true

	engine := porby.New()
	if err := engine.Start(cfg); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer engine.Stop()

	go runSyntheticCollector(ctx, engine, tickInterval)

	slog.Info("porbydemo: running", slog.Int("port", port), slog.Bool("requires_pairing", requiresPairing))
	<-ctx.Done()
	slog.Info("porbydemo: shutting down")
	return nil
}

// runSyntheticCollector stands in for a real collector (network, UI,
// performance) wired by a host application: it periodically produces
// a log entry so there's something to see on a connected viewer.
func runSyntheticCollector(ctx context.Context, engine *porby.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ticker.C:
			tick++
			engine.Log(porby.LevelInfo, porby.CategoryApp, fmt.Sprintf("synthetic tick #%d", tick), porby.SourceSite{
				File:     "main.go",
				Function: "runSyntheticCollector",
			})
		case <-ctx.Done():
			return
		}
	}
}

func defaultHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "porbydemo"
	}
	return name
}
