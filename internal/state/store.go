package state

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/openagora/dashsync/internal/model"
)

// Store serializes all read-model mutations behind one mutex and exposes
// the state as copy-out snapshots. It is the single owner of the model:
// routed events, reconciliation merges, and snapshot reads never
// interleave.
type Store struct {
	logger  *slog.Logger
	reducer Reducer

	mu      sync.Mutex
	state   DashboardState
	version uint64
	seeded  bool
	closed  bool

	// removed holds ids taken out of the queue by approve/reject events
	// since the last snapshot merge. A lagging snapshot may still list
	// them; the merge must not put them back.
	removed map[string]struct{}

	// changes is signalled (non-blocking) after every mutation.
	changes chan struct{}
}

// NewStore creates an empty store.
func NewStore(activityCap, flaggedCap int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:  logger,
		reducer: NewReducer(activityCap, flaggedCap),
		removed: make(map[string]struct{}),
		changes: make(chan struct{}, 1),
	}
}

// Apply folds one event into the state. Events arriving after Close are
// dropped.
func (s *Store) Apply(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("dropping event after close", "type", ev.Kind.String())
		return
	}

	switch p := ev.Payload.(type) {
	case model.ItemApproved:
		s.removed[p.ID] = struct{}{}
	case model.ItemRejected:
		s.removed[p.ID] = struct{}{}
	}

	s.state = s.reducer.Apply(s.state, ev)
	s.version++
	s.notifyChangeLocked()
}

// Reconcile merges an authoritative server snapshot. Counters and the
// presence set are replaced wholesale. The pending queue and activity
// log are replaced on the first call (session seed) and merged by id on
// every later call, keeping local entries the snapshot does not yet
// reflect. Late snapshots arriving after Close are dropped.
func (s *Store) Reconcile(snap model.ServerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("dropping snapshot after close")
		return
	}

	s.state.Counters = clampCounters(snap.Counters)
	s.state.Presence = copyPresence(snap.Presence)

	if !s.seeded {
		s.seeded = true
		s.state.Pending = dropRemoved(clonePending(snap.Pending), s.removed)
		s.state.Activity = cloneActivity(snap.Activity)
		if len(s.state.Activity) > s.reducer.activityCap {
			s.state.Activity = s.state.Activity[:s.reducer.activityCap]
		}
	} else {
		s.state.Pending = mergePending(s.state.Pending, snap.Pending, s.removed)
		s.state.Activity = mergeActivity(s.state.Activity, snap.Activity, s.reducer.activityCap)
	}
	clear(s.removed)

	s.version++
	s.notifyChangeLocked()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return DashboardState{
		Pending:  clonePending(s.state.Pending),
		Counters: s.state.Counters,
		Presence: copyPresence(s.state.Presence),
		Flagged:  cloneFlagged(s.state.Flagged),
		Activity: cloneActivity(s.state.Activity),
	}
}

// Version returns a counter that increments on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Changes returns a channel signalled after mutations. The signal is
// coalesced: a slow consumer sees at least one notification for any
// burst of changes.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Close marks the store disposed. Later Apply and Reconcile calls are
// dropped, so in-flight messages and snapshot responses cannot mutate
// state after teardown.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.logger.Debug("read model closed", "version", s.version)
}

func (s *Store) notifyChangeLocked() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// mergePending unions local and server items by id. Local entries stay
// (they may be newer than the snapshot); server-only entries are added
// unless an approve/reject already removed them locally, so a lagging
// snapshot cannot make a moderated item reappear. The result is ordered
// newest-first by creation time.
func mergePending(local, server []model.PendingItem, removed map[string]struct{}) []model.PendingItem {
	out := clonePending(local)
	seen := make(map[string]struct{}, len(local))
	for _, item := range local {
		seen[item.ID] = struct{}{}
	}
	for _, item := range server {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		if _, ok := removed[item.ID]; ok {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func dropRemoved(items []model.PendingItem, removed map[string]struct{}) []model.PendingItem {
	if len(removed) == 0 {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if _, ok := removed[item.ID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// clampCounters floors every snapshot counter at zero, matching what the
// event path guarantees. A malformed snapshot must not break that.
func clampCounters(c model.CounterSnapshot) model.CounterSnapshot {
	c.TotalForums = clamp(c.TotalForums)
	c.PendingApprovals = clamp(c.PendingApprovals)
	c.ActiveThreads = clamp(c.ActiveThreads)
	c.FlaggedContent = clamp(c.FlaggedContent)
	c.ActiveUsers = clamp(c.ActiveUsers)
	c.OnlineUsers = clamp(c.OnlineUsers)
	c.TotalThreads = clamp(c.TotalThreads)
	c.TotalAnswers = clamp(c.TotalAnswers)
	return c
}

// mergeActivity unions local and server entries by id, orders them
// most-recent-first, and truncates to the cap.
func mergeActivity(local, server []model.ActivityEvent, limit int) []model.ActivityEvent {
	out := cloneActivity(local)
	seen := make(map[string]struct{}, len(local))
	for _, e := range local {
		seen[e.ID] = struct{}{}
	}
	for _, e := range server {
		if _, ok := seen[e.ID]; !ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clonePending(items []model.PendingItem) []model.PendingItem {
	out := make([]model.PendingItem, len(items))
	copy(out, items)
	return out
}

func cloneActivity(items []model.ActivityEvent) []model.ActivityEvent {
	out := make([]model.ActivityEvent, len(items))
	copy(out, items)
	return out
}

func cloneFlagged(items []model.FlaggedReport) []model.FlaggedReport {
	out := make([]model.FlaggedReport, len(items))
	copy(out, items)
	return out
}
