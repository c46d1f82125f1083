package collector

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/porby-sdk/porby/pkg/model"
)

// Sampler returns a snapshot of the metrics the platform can supply.
// CPU%/FPS/disk throughput are platform probes outside this module's
// scope (spec §1's "platform-specific device/app metadata probes");
// memory is the one stdlib-observable field, via runtime.ReadMemStats,
// so the default sampler fills only that and leaves the rest zero.
type Sampler func() model.PerformanceExtra

// DefaultSampler reports only MemoryMB, via runtime.ReadMemStats.
func DefaultSampler() model.PerformanceExtra {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return model.PerformanceExtra{
		MemoryMB: float64(stats.Alloc) / (1024 * 1024),
	}
}

// PerformanceCollector samples on a fixed interval, per spec §4.2's
// "performance sampling interval" limit.
type PerformanceCollector struct {
	interval time.Duration
	sample   Sampler

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPerformanceCollector(interval time.Duration, sample Sampler) *PerformanceCollector {
	if interval <= 0 {
		interval = time.Second
	}
	if sample == nil {
		sample = DefaultSampler
	}
	return &PerformanceCollector{interval: interval, sample: sample}
}

func (p *PerformanceCollector) Start(emit EmitFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snap := p.sample()
				e := model.NewEntry(model.LevelInfo, model.CategoryPerformance, "performance sample", model.SourceSite{})
				emit(e.WithExtra(model.PerformanceExtraOf(snap)))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (p *PerformanceCollector) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
