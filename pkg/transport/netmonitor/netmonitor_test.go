package netmonitor

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upInterface(name string) net.Interface {
	return net.Interface{Name: name, Flags: net.FlagUp}
}

func downInterface(name string) net.Interface {
	return net.Interface{Name: name, Flags: 0}
}

func TestNonWiFiToWiFiTransitionFiresOnAcquired(t *testing.T) {
	var acquired atomic.Int32
	var lost atomic.Int32

	m := New(func() { acquired.Add(1) }, func() { lost.Add(1) })
	m.SetPollInterval(5 * time.Millisecond)

	var step atomic.Int32
	m.SetInterfaceLister(func() ([]net.Interface, error) {
		if step.Load() == 0 {
			return []net.Interface{upInterface("eth0")}, nil
		}
		return []net.Interface{upInterface("eth0"), upInterface("wlan0")}, nil
	})

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool { return acquired.Load() == 0 }, 20*time.Millisecond, time.Millisecond)
	step.Store(1)

	require.Eventually(t, func() bool { return acquired.Load() >= 1 }, 200*time.Millisecond, 2*time.Millisecond)
	assert.Equal(t, int32(0), lost.Load())
}

func TestWiFiToNonWiFiTransitionFiresOnLost(t *testing.T) {
	var acquired atomic.Int32
	var lost atomic.Int32

	m := New(func() { acquired.Add(1) }, func() { lost.Add(1) })
	m.SetPollInterval(5 * time.Millisecond)

	var step atomic.Int32
	m.SetInterfaceLister(func() ([]net.Interface, error) {
		if step.Load() == 0 {
			return []net.Interface{upInterface("wlan0")}, nil
		}
		return []net.Interface{downInterface("wlan0")}, nil
	})

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool { return acquired.Load() >= 1 }, 200*time.Millisecond, 2*time.Millisecond)
	step.Store(1)

	require.Eventually(t, func() bool { return lost.Load() >= 1 }, 200*time.Millisecond, 2*time.Millisecond)
}

func TestStableStateFiresCallbackOnlyOnce(t *testing.T) {
	var acquired atomic.Int32

	m := New(func() { acquired.Add(1) }, nil)
	m.SetPollInterval(2 * time.Millisecond)
	m.SetInterfaceLister(func() ([]net.Interface, error) {
		return []net.Interface{upInterface("wlan0")}, nil
	})

	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestStopIsIdempotentAndStartAfterStopResumesPolling(t *testing.T) {
	var acquired atomic.Int32
	var polls atomic.Int32
	m := New(func() { acquired.Add(1) }, nil)
	m.SetPollInterval(2 * time.Millisecond)
	m.SetInterfaceLister(func() ([]net.Interface, error) {
		polls.Add(1)
		return []net.Interface{upInterface("wlan0")}, nil
	})

	m.Start()
	time.Sleep(10 * time.Millisecond)
	m.Stop()
	m.Stop() // no panic, no double-close

	assert.Equal(t, int32(1), acquired.Load())

	// Stop waited for the poll goroutine, so the count is frozen until
	// the next Start.
	stoppedAt := polls.Load()
	m.Start()
	defer m.Stop()
	require.Eventually(t, func() bool { return polls.Load() > stoppedAt }, 200*time.Millisecond, 2*time.Millisecond)
}
