package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openagora/dashsync/internal/connection"
	"github.com/openagora/dashsync/internal/model"
)

// fakeFetcher returns scripted results, then repeats the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (f *fakeFetcher) GetSnapshot(ctx context.Context) (model.ServerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.calls < len(f.results) {
		err = f.results[f.calls]
	}
	f.calls++
	if err != nil {
		return model.ServerSnapshot{}, err
	}
	return model.ServerSnapshot{
		Counters: model.CounterSnapshot{TotalForums: f.calls},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeMerger records merged snapshots.
type fakeMerger struct {
	mu    sync.Mutex
	snaps []model.ServerSnapshot
}

func (m *fakeMerger) Reconcile(snap model.ServerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
}

func (m *fakeMerger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

func waitForMerges(t *testing.T, m *fakeMerger, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("merged %d snapshots, want at least %d", m.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startScheduler(t *testing.T, cfg Config, fetcher Fetcher, merger Merger, states <-chan connection.StateChange) *Scheduler {
	t.Helper()
	s := New(cfg, fetcher, merger, states, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	s := startScheduler(t, Config{Interval: time.Hour}, fetcher, merger, nil)

	waitForMerges(t, merger, 1)
	if s.Stats().Runs < 1 {
		t.Errorf("Runs = %d, want >= 1", s.Stats().Runs)
	}
}

func TestScheduler_PeriodicRuns(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	startScheduler(t, Config{Interval: 10 * time.Millisecond}, fetcher, merger, nil)

	// Immediate run plus at least two ticks.
	waitForMerges(t, merger, 3)
}

func TestScheduler_RunsOnReconnect(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	states := make(chan connection.StateChange, 4)
	startScheduler(t, Config{Interval: time.Hour}, fetcher, merger, states)

	waitForMerges(t, merger, 1)

	// Intermediate states do not trigger runs.
	states <- connection.StateChange{To: connection.StateReconnecting}
	states <- connection.StateChange{To: connection.StateConnecting}
	states <- connection.StateChange{To: connection.StateConnected}

	waitForMerges(t, merger, 2)
	time.Sleep(20 * time.Millisecond)
	if merger.count() != 2 {
		t.Errorf("merges = %d, want 2 (only connected transition triggers)", merger.count())
	}
}

func TestScheduler_ManualRefresh(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	s := startScheduler(t, Config{Interval: time.Hour}, fetcher, merger, nil)

	waitForMerges(t, merger, 1)
	s.Refresh()
	waitForMerges(t, merger, 2)
}

func TestScheduler_FetchFailureLeavesStateAndRetries(t *testing.T) {
	fetcher := &fakeFetcher{results: []error{errors.New("gateway timeout")}}
	merger := &fakeMerger{}
	s := startScheduler(t, Config{Interval: 10 * time.Millisecond}, fetcher, merger, nil)

	// First run fails silently; the next tick succeeds.
	waitForMerges(t, merger, 1)

	stats := s.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if fetcher.callCount() < 2 {
		t.Errorf("fetch calls = %d, want >= 2", fetcher.callCount())
	}
}

func TestScheduler_ClosedStateChannelKeepsTicking(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	states := make(chan connection.StateChange)
	close(states)
	startScheduler(t, Config{Interval: 10 * time.Millisecond}, fetcher, merger, states)

	waitForMerges(t, merger, 2)
}

func TestScheduler_StopHaltsRuns(t *testing.T) {
	fetcher := &fakeFetcher{}
	merger := &fakeMerger{}
	s := New(Config{Interval: 10 * time.Millisecond}, fetcher, merger, nil, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForMerges(t, merger, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	count := merger.count()
	time.Sleep(50 * time.Millisecond)
	if merger.count() != count {
		t.Error("runs continued after Stop")
	}
}
