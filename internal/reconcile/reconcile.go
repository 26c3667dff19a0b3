// Package reconcile periodically pulls authoritative snapshots and
// merges them into the read model to correct drift between the push
// channel and server state.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openagora/dashsync/internal/connection"
	"github.com/openagora/dashsync/internal/metrics"
	"github.com/openagora/dashsync/internal/model"
)

// Fetcher retrieves a full server snapshot.
type Fetcher interface {
	GetSnapshot(ctx context.Context) (model.ServerSnapshot, error)
}

// Merger receives fetched snapshots.
type Merger interface {
	Reconcile(snap model.ServerSnapshot)
}

// Trigger identifies what started a reconciliation run.
type Trigger string

const (
	TriggerInterval  Trigger = "interval"
	TriggerReconnect Trigger = "reconnect"
	TriggerManual    Trigger = "manual"
)

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // run period (default: 30s)
	Timeout  time.Duration // per-run fetch timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Scheduler runs snapshot reconciliation on a fixed period, immediately
// after every reconnect, and on demand via Refresh. All triggers share
// one fetch-and-merge path. A failed run leaves local state untouched;
// the next run retries.
type Scheduler struct {
	cfg     Config
	fetcher Fetcher
	merger  Merger
	states  <-chan connection.StateChange
	m       *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refresh chan struct{}

	mu   sync.Mutex
	runs int64
	errs int64
	last time.Time
}

// Stats reports scheduler run counts.
type Stats struct {
	Runs    int64
	Errors  int64
	LastRun time.Time
}

// New creates a scheduler. states may be nil to disable reconnect
// triggering; m may be nil to disable metrics.
func New(cfg Config, fetcher Fetcher, merger Merger, states <-chan connection.StateChange, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		merger:  merger,
		states:  states,
		m:       m,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

// Start begins the reconciliation loop, with one immediate run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("reconciliation scheduler started", "interval", s.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh requests an out-of-band reconciliation. Coalesced: repeated
// calls while a request is pending trigger one run.
func (s *Scheduler) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Stats returns run statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Runs: s.runs, Errors: s.errs, LastRun: s.last}
}

// run is the main scheduling loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Seed immediately on start.
	s.reconcile(TriggerManual)

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.reconcile(TriggerInterval)

		case <-s.refresh:
			s.reconcile(TriggerManual)

		case change, ok := <-s.states:
			if !ok {
				// Connection torn down; keep periodic runs going
				// until the scheduler itself is stopped.
				s.states = nil
				continue
			}
			if change.To == connection.StateConnected {
				// Events may have been missed during the outage.
				s.reconcile(TriggerReconnect)
			}
		}
	}
}

// reconcile performs one fetch-and-merge run.
func (s *Scheduler) reconcile(trigger Trigger) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	snap, err := s.fetcher.GetSnapshot(ctx)
	if err != nil {
		s.logger.Warn("snapshot fetch failed, keeping local state",
			"trigger", string(trigger),
			"error", err,
		)
		s.mu.Lock()
		s.errs++
		s.mu.Unlock()
		if s.m != nil {
			s.m.ReconcileRuns.WithLabelValues(string(trigger), "error").Inc()
		}
		return
	}

	s.merger.Reconcile(snap)

	s.mu.Lock()
	s.runs++
	s.last = time.Now()
	s.mu.Unlock()

	if s.m != nil {
		s.m.ReconcileRuns.WithLabelValues(string(trigger), "success").Inc()
		s.m.ReconcileDuration.Observe(time.Since(start).Seconds())
	}

	s.logger.Debug("reconciliation complete",
		"trigger", string(trigger),
		"duration", time.Since(start),
		"pending", len(snap.Pending),
		"presence", len(snap.Presence),
	)
}
