// Package scheduler runs one cancellable polling loop per monitored
// instance (spec.md §4.6): read the Instance row, fan out probes across
// its enabled Targets under a concurrency limit, and hand the results to
// the Persister.
//
// Grounded on the teacher's internal/supervisor.Run/runInstanceLoop (one
// cancellable goroutine per unit of work, a Runtime Manager tracking
// status transitions with timestamps) and internal/indexer.
// FilterLiveBySmoketest (counting-semaphore fan-out over a slice with a
// WaitGroup).
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/persist"
	"github.com/sitewatch/sitewatch/internal/probe"
	"github.com/sitewatch/sitewatch/internal/store"
)

// defaultCycleDelay is returned when an instance cycle has nothing to do
// (missing or disabled instance) per spec.md §4.6 step 1.
const defaultCycleDelay = 30 * time.Second

// Prober is the scheduler's capability surface for running one target's
// probe, satisfied by *probe.Engine.
type Prober interface {
	Probe(ctx context.Context, t probe.Target) probe.Result
}

// runCycle implements spec.md §4.6 steps 1-5 for one instance and returns
// the delay to wait before the next cycle. m is optional; pass nil to skip
// metrics recording (as the package's own tests do).
func runCycle(ctx context.Context, s *store.Store, p *persist.Persister, prober Prober, instanceID string, m *metrics.Registry) time.Duration {
	inst, err := s.GetInstance(ctx, instanceID)
	if err != nil {
		log.Printf("scheduler[%s]: read instance: %v", instanceID, err)
		return defaultCycleDelay
	}
	if inst == nil {
		log.Printf("scheduler[%s]: instance no longer exists", instanceID)
		return defaultCycleDelay
	}
	if !inst.Enabled {
		return defaultCycleDelay
	}
	if inst.IsPaused || (inst.PausedUntilUtc != nil && inst.PausedUntilUtc.After(time.Now().UTC())) {
		return interval(inst)
	}

	targets, err := s.ListEnabledTargets(ctx, instanceID)
	if err != nil {
		log.Printf("scheduler[%s]: list targets: %v", instanceID, err)
		return interval(inst)
	}
	if len(targets) == 0 {
		return interval(inst)
	}

	outcomes := probeAll(ctx, prober, targets, concurrency(inst), m)
	p.Persist(ctx, outcomes)

	if m != nil {
		m.ObserveCycle(instanceID, "ok")
	}
	return interval(inst)
}

func interval(inst *store.Instance) time.Duration {
	if inst.CheckIntervalSeconds <= 0 {
		return defaultCycleDelay
	}
	return time.Duration(inst.CheckIntervalSeconds) * time.Second
}

func concurrency(inst *store.Instance) int {
	if inst.ConcurrencyLimit <= 0 {
		return 1
	}
	return inst.ConcurrencyLimit
}

// probeAll fans targets out across a counting semaphore of the given
// capacity; a per-target panic or timeout simply yields no result for that
// target (swallowed and logged), never aborting the rest of the batch.
func probeAll(ctx context.Context, prober Prober, targets []*store.Target, concurrency int, m *metrics.Registry) []persist.ProbeOutcome {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var outcomes []persist.ProbeOutcome

	for _, t := range targets {
		wg.Add(1)
		go func(target *store.Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			started := time.Now()
			result := safeProbe(ctx, prober, target)
			if m != nil {
				m.ObserveProbeLatency("full", time.Since(started).Seconds())
			}
			if result == nil {
				return
			}
			mu.Lock()
			outcomes = append(outcomes, persist.ProbeOutcome{
				TargetID: target.TargetID,
				Result:   *result,
				Ts:       time.Now().UTC(),
			})
			mu.Unlock()
		}(t)
	}
	wg.Wait()
	return outcomes
}

// safeProbe recovers from a panic inside the prober so one bad target can
// never take down a whole cycle, logging and producing no result instead.
func safeProbe(ctx context.Context, prober Prober, target *store.Target) (result *probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: probe of target %s panicked: %v", target.TargetID, r)
			result = nil
		}
	}()
	r := prober.Probe(ctx, probe.Target{
		URL:                   target.URL,
		HTTPExpectedStatusMin: target.HTTPExpectedStatusMin,
		HTTPExpectedStatusMax: target.HTTPExpectedStatusMax,
	})
	return &r
}
