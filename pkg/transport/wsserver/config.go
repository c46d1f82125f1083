package wsserver

import "time"

// Config tunes one Server instance. New replaces zero-valued timing
// and size fields with DefaultConfig's values; a zero Port picks an
// ephemeral port.
type Config struct {
	// Port to listen on. 0 means let the kernel assign an ephemeral
	// port; read it back via Server.Addr after Start.
	Port int

	// MaxConnections caps the number of simultaneously open connections.
	// 0 means unlimited.
	MaxConnections int

	PingPeriod     time.Duration
	WriteWait      time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultConfig mirrors the teacher's WebSocketConfig defaults; the
// separate buffer-cleanup and health-check tickers it carried are
// dropped here because a per-connection read deadline already expires
// a dead peer without a second scanning goroutine (see DESIGN.md).
func DefaultConfig() Config {
	return Config{
		Port:           9394,
		PingPeriod:     30 * time.Second,
		WriteWait:      10 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 512 * 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingPeriod <= 0 {
		c.PingPeriod = d.PingPeriod
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}
