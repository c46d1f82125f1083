// Package advertiser publishes the SDK's WebSocket service on the
// local network via Bonjour/mDNS so a viewer app can discover it
// without the user typing in an IP address. No example repo in the
// retrieval pack implements general-purpose mDNS service advertisement
// (the one mdns import present, pion/mdns/v2, is a WebRTC ICE
// candidate resolver, not a service publisher), so this package reaches
// outside the pack for github.com/hashicorp/mdns, the standard
// general-purpose Go mDNS server library — named, not grounded, per the
// out-of-pack dependency rule.
package advertiser

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_porby._tcp"

// Record holds the fields that populate the advertised TXT record, per
// spec §4.6.
type Record struct {
	ServiceName     string
	DeviceName      string
	SDKVersion      string
	Port            int
	PairingRequired bool
	AdvertiseApp    bool
	AppName         string
	AppVersion      string
}

// Advertiser wraps a single mdns.Server lifecycle: Start publishes the
// record, Stop clears it.
type Advertiser struct {
	mu     sync.Mutex
	server *mdns.Server
}

// Start publishes rec on the local network. Calling Start while
// already running stops the previous record first.
func (a *Advertiser) Start(rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		_ = a.server.Shutdown()
		a.server = nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = rec.DeviceName
	}

	txt := buildTXT(rec)

	name := rec.ServiceName
	if name == "" {
		name = rec.DeviceName
	}

	service, err := mdns.NewMDNSService(name, ServiceType, "", host+".", rec.Port, nil, txt)
	if err != nil {
		return fmt.Errorf("advertiser: build service record: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("advertiser: start mdns server: %w", err)
	}

	a.server = server
	slog.Info("advertiser: publishing service", slog.String("name", name), slog.Int("port", rec.Port))
	return nil
}

// buildTXT assembles the TXT record key=value pairs per spec §4.6:
// device_name, sdk_version, protocol, pairing_required, and (when
// AdvertiseApp) app_name/app_version.
func buildTXT(rec Record) []string {
	txt := []string{
		"device_name=" + rec.DeviceName,
		"sdk_version=" + rec.SDKVersion,
		"protocol=1",
		fmt.Sprintf("pairing_required=%t", rec.PairingRequired),
	}
	if rec.AdvertiseApp {
		txt = append(txt, "app_name="+rec.AppName, "app_version="+rec.AppVersion)
	}
	return txt
}

// Stop clears the published service record, if any.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(); err != nil {
		slog.Error("advertiser: shutdown failed", slog.String("error", err.Error()))
	}
	a.server = nil
}
