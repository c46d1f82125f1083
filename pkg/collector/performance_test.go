package collector

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porby-sdk/porby/pkg/model"
)

func TestPerformanceCollectorSamplesOnInterval(t *testing.T) {
	var count atomic.Int32
	sample := func() model.PerformanceExtra {
		return model.PerformanceExtra{MemoryMB: 42}
	}
	pc := NewPerformanceCollector(5*time.Millisecond, sample)

	var last model.LogEntry
	require.NoError(t, pc.Start(func(e model.LogEntry) {
		last = e
		count.Add(1)
	}))
	defer pc.Stop()

	require.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, time.Millisecond)

	require.NotNil(t, last.Extra)
	assert.Equal(t, model.ExtraPerformance, last.Extra.Kind)
	assert.Equal(t, float64(42), last.Extra.Performance.MemoryMB)
}

func TestPerformanceCollectorStopStopsSampling(t *testing.T) {
	var count atomic.Int32
	pc := NewPerformanceCollector(5*time.Millisecond, func() model.PerformanceExtra {
		return model.PerformanceExtra{}
	})
	require.NoError(t, pc.Start(func(model.LogEntry) { count.Add(1) }))
	require.Eventually(t, func() bool { return count.Load() >= 1 }, time.Second, time.Millisecond)

	pc.Stop()
	observed := count.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, observed, count.Load())
}

func TestPerformanceCollectorStartIsIdempotent(t *testing.T) {
	pc := NewPerformanceCollector(5*time.Millisecond, func() model.PerformanceExtra {
		return model.PerformanceExtra{}
	})
	require.NoError(t, pc.Start(func(model.LogEntry) {}))
	require.NoError(t, pc.Start(func(model.LogEntry) {}))
	pc.Stop()
	pc.Stop() // idempotent, must not panic
}

func TestDefaultSamplerReportsMemory(t *testing.T) {
	snap := DefaultSampler()
	assert.Greater(t, snap.MemoryMB, float64(0))
}
