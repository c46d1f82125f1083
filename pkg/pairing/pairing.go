// Package pairing implements the PIN-based authorization state
// machine gating log delivery to a connecting viewer: code issuance,
// validation, failed-attempt tracking, and a cooldown after repeated
// failures.
package pairing

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultCooldown    = 30 * time.Second
)

// Result is the structural outcome of a Validate call. Pairing errors
// are never thrown, per spec §7 — they are returned as a Result and
// the caller (the WebSocket server) turns that into a pairingResponse
// message.
type Result struct {
	Accepted bool
	Reason   string // populated only when !Accepted
}

// Manager is a single PIN's lifecycle: the active code, a failed-
// attempt counter, and an optional cooldown deadline.
type Manager struct {
	mu          sync.Mutex
	activeCode  string
	attempts    int
	maxAttempts int
	cooldown    time.Duration
	cooldownTil time.Time

	now func() time.Time // overridable in tests
}

// Config configures a Manager. FixedCode, if non-empty, is used
// verbatim instead of generating a random code.
type Config struct {
	FixedCode   string
	MaxAttempts int
	Cooldown    time.Duration
}

// New constructs a Manager and immediately issues its active code.
func New(cfg Config) *Manager {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	m := &Manager{
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
		now:         time.Now,
	}
	m.activeCode = m.generateCode(cfg.FixedCode)
	return m
}

// generateCode uses the configured fixed code if supplied; otherwise
// it draws 4 cryptographically-random bytes, interprets them
// big-endian as a u32, reduces modulo 1,000,000, and formats as a
// zero-padded 6-digit string. The code is displayed via the platform
// developer log (slog here) for the developer to key into the viewer.
func (m *Manager) generateCode(fixed string) string {
	var code string
	if fixed != "" {
		code = fixed
	} else {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is effectively unrecoverable on any
			// supported platform; fall back to a deterministic code
			// rather than panicking in a logging SDK.
			slog.Error("pairing: crypto/rand failed, using fallback code", slog.String("error", err.Error()))
			code = "000000"
		} else {
			n := binary.BigEndian.Uint32(buf[:]) % 1_000_000
			code = fmt.Sprintf("%06d", n)
		}
	}

	slog.Info("pairing code ready", slog.String("code", code))
	return code
}

// Validate implements the three-step decision from spec §4.5:
// cooldown check, code comparison with attempt accounting, and reset
// on success.
func (m *Manager) Validate(code string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if !m.cooldownTil.IsZero() && now.Before(m.cooldownTil) {
		remaining := m.cooldownTil.Sub(now)
		seconds := int(math.Ceil(remaining.Seconds()))
		return Result{Accepted: false, Reason: fmt.Sprintf("Cooldown active. Try again in %ds", seconds)}
	}

	if code != m.activeCode {
		m.attempts++
		if m.attempts >= m.maxAttempts {
			m.cooldownTil = now.Add(m.cooldown)
			m.attempts = 0
			return Result{Accepted: false, Reason: "Too many failed attempts. Cooldown active."}
		}
		remaining := m.maxAttempts - m.attempts
		return Result{Accepted: false, Reason: fmt.Sprintf("Invalid code. %d attempts remaining", remaining)}
	}

	m.attempts = 0
	m.cooldownTil = time.Time{}
	return Result{Accepted: true}
}

// ActiveCode returns the current code (e.g. for display by the host
// application's own developer-facing UI).
func (m *Manager) ActiveCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCode
}
