package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/persist"
	"github.com/sitewatch/sitewatch/internal/store"
)

// stopWait caps how long stop() waits for a cancelled loop to exit, so a
// wedged probe never hangs the caller (spec.md §4.6's Runtime Manager).
const stopWait = 5 * time.Second

// Manager is the Runtime Manager of spec.md §4.6: it owns one Worker per
// instance and the start/stop/restart/tryGet/getAll operations over them.
// Grounded on internal/supervisor.Run's per-unit goroutine-plus-cancel
// bookkeeping, generalized from a fixed process list to a live, mutable
// instance set.
type Manager struct {
	store   *store.Store
	persist *persist.Persister
	prober  Prober
	metrics *metrics.Registry

	mu      sync.Mutex
	workers map[string]*Worker
}

// NewManager returns a Manager driving cycles against s via p, probing
// with prober. m is optional; pass nil to run without metrics recording.
func NewManager(s *store.Store, p *persist.Persister, prober Prober, m *metrics.Registry) *Manager {
	return &Manager{store: s, persist: p, prober: prober, metrics: m, workers: make(map[string]*Worker)}
}

func (m *Manager) workerFor(instanceID string) *Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[instanceID]
	if !ok {
		w = newWorker(instanceID)
		m.workers[instanceID] = w
	}
	return w
}

// Start creates or reuses a Worker for instanceID; a no-op if it is already
// Running with a live task.
func (m *Manager) Start(instanceID string) {
	w := m.workerFor(instanceID)
	if w.running() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()
	w.transition(StatusRunning, "started")

	go func() {
		defer close(done)
		m.loop(ctx, instanceID)
	}()
}

// loop is the scheduler loop of spec.md §4.6: run a cycle, sleep the
// returned interval, repeat until ctx is cancelled.
func (m *Manager) loop(ctx context.Context, instanceID string) {
	for {
		delay := runCycle(ctx, m.store, m.persist, m.prober, instanceID, m.metrics)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Stop transitions instanceID's Worker to Paused, cancels its loop, and
// waits up to 5 seconds for the goroutine to exit.
func (m *Manager) Stop(instanceID string) {
	w := m.workerFor(instanceID)

	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()
	w.transition(StatusPaused, "stopped")

	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopWait):
		log.Printf("scheduler[%s]: stop timed out waiting for loop to exit", instanceID)
	}
}

// Restart stops then starts instanceID's Worker.
func (m *Manager) Restart(instanceID string) {
	m.Stop(instanceID)
	m.Start(instanceID)
}

// TryGet returns instanceID's current status, or false if no Worker has
// ever been created for it.
func (m *Manager) TryGet(instanceID string) (WorkerState, bool) {
	m.mu.Lock()
	w, ok := m.workers[instanceID]
	m.mu.Unlock()
	if !ok {
		return WorkerState{}, false
	}
	return w.snapshot(), true
}

// GetAll returns a snapshot of every known Worker's status.
func (m *Manager) GetAll() []WorkerState {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	out := make([]WorkerState, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.snapshot())
	}
	return out
}
