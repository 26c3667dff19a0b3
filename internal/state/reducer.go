// Package state holds the dashboard read model: the pending moderation
// queue, aggregate counters, the online presence set, the flagged report
// list, and a capped activity log. A pure reducer folds events into the
// model; a Store serializes access and hands out copy-out snapshots.
package state

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/openagora/dashsync/internal/model"
)

// DashboardState is the complete read model. Values are treated as
// immutable: the reducer returns a new state rather than mutating its
// input.
type DashboardState struct {
	Pending  []model.PendingItem
	Counters model.CounterSnapshot
	Presence []model.PresenceEntry
	Flagged  []model.FlaggedReport
	Activity []model.ActivityEvent
}

// Reducer applies domain events to the read model within configured
// bounds.
type Reducer struct {
	activityCap int
	flaggedCap  int
}

// NewReducer creates a reducer with the given log caps.
func NewReducer(activityCap, flaggedCap int) Reducer {
	if activityCap < 1 {
		activityCap = 1
	}
	if flaggedCap < 1 {
		flaggedCap = 1
	}
	return Reducer{activityCap: activityCap, flaggedCap: flaggedCap}
}

// Apply folds one event into the state and returns the next state. The
// input state is never mutated. Events with payloads of an unexpected
// type are ignored.
func (r Reducer) Apply(s DashboardState, ev model.Event) DashboardState {
	switch p := ev.Payload.(type) {
	case model.ItemCreated:
		if hasPending(s.Pending, p.ID) {
			return s
		}
		next := s
		next.Pending = prependPending(s.Pending, pendingFromCreate(p.ID, p.Title, p.Description, p.Category, p.Creator, p.CreatedAt))
		next.Counters.PendingApprovals++
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.Title, ev.ReceivedAt)
		return next

	case model.ItemPending:
		if hasPending(s.Pending, p.ID) {
			return s
		}
		next := s
		next.Pending = prependPending(s.Pending, pendingFromCreate(p.ID, p.Title, p.Description, p.Category, p.Creator, p.CreatedAt))
		return next

	case model.ItemApproved:
		next := s
		next.Pending = removePending(s.Pending, p.ID)
		next.Counters.PendingApprovals = clamp(s.Counters.PendingApprovals - 1)
		next.Counters.TotalForums++
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.ID, ev.ReceivedAt)
		return next

	case model.ItemRejected:
		next := s
		next.Pending = removePending(s.Pending, p.ID)
		next.Counters.PendingApprovals = clamp(s.Counters.PendingApprovals - 1)
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.Reason, ev.ReceivedAt)
		return next

	case model.ReportCreated:
		next := s
		next.Flagged = r.prependFlagged(s.Flagged, model.FlaggedReport{
			ID:        p.ID,
			Reason:    p.Reason,
			Reporter:  p.Reporter,
			CreatedAt: ev.ReceivedAt,
		})
		next.Counters.FlaggedContent++
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.Reason, ev.ReceivedAt)
		return next

	case model.CountersPatch:
		next := s
		next.Counters = mergeCounters(s.Counters, p, ev.ReceivedAt)
		return next

	case model.PresenceOnline:
		if hasPresence(s.Presence, p.UserID) {
			return s
		}
		next := s
		entry := model.PresenceEntry{
			UserID:      p.UserID,
			DisplayName: p.User.Name,
			AvatarRef:   p.User.ProfilePhoto,
			Role:        p.User.Role,
		}
		next.Presence = append(copyPresence(s.Presence), entry)
		next.Counters.OnlineUsers++
		next.Counters.LastUpdated = ev.ReceivedAt
		return next

	case model.PresenceOffline:
		if !hasPresence(s.Presence, p.UserID) {
			return s
		}
		next := s
		next.Presence = removePresence(s.Presence, p.UserID)
		next.Counters.OnlineUsers = clamp(s.Counters.OnlineUsers - 1)
		next.Counters.LastUpdated = ev.ReceivedAt
		return next

	case model.ThreadCreated:
		next := s
		next.Counters.ActiveThreads++
		next.Counters.TotalThreads++
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.Title, ev.ReceivedAt)
		return next

	case model.AnswerPosted:
		next := s
		next.Counters.TotalAnswers++
		next.Counters.LastUpdated = ev.ReceivedAt
		next.Activity = r.appendActivity(s.Activity, ev.Kind.String(), p.ThreadTitle, ev.ReceivedAt)
		return next

	case model.GenericActivity:
		next := s
		next.Activity = r.appendActivity(s.Activity, p.ActivityType, rawPayloadString(p.Payload), ev.ReceivedAt)
		return next
	}

	return s
}

// appendActivity prepends a new entry and truncates to the cap. The id
// is locally assigned so entries stay distinguishable even when two
// events share a clock tick.
func (r Reducer) appendActivity(log []model.ActivityEvent, typ, payload string, ts time.Time) []model.ActivityEvent {
	entry := model.ActivityEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: ts,
	}

	out := make([]model.ActivityEvent, 0, len(log)+1)
	out = append(out, entry)
	out = append(out, log...)
	if len(out) > r.activityCap {
		out = out[:r.activityCap]
	}
	return out
}

func (r Reducer) prependFlagged(list []model.FlaggedReport, report model.FlaggedReport) []model.FlaggedReport {
	out := make([]model.FlaggedReport, 0, len(list)+1)
	out = append(out, report)
	out = append(out, list...)
	if len(out) > r.flaggedCap {
		out = out[:r.flaggedCap]
	}
	return out
}

func pendingFromCreate(id, title, description, category, creator string, createdAt int64) model.PendingItem {
	return model.PendingItem{
		ID:          id,
		Title:       title,
		Description: description,
		Category:    category,
		Creator:     creator,
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
		Status:      "pending",
	}
}

func hasPending(items []model.PendingItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func prependPending(items []model.PendingItem, item model.PendingItem) []model.PendingItem {
	out := make([]model.PendingItem, 0, len(items)+1)
	out = append(out, item)
	out = append(out, items...)
	return out
}

func removePending(items []model.PendingItem, id string) []model.PendingItem {
	out := make([]model.PendingItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func hasPresence(entries []model.PresenceEntry, userID string) bool {
	for _, e := range entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func copyPresence(entries []model.PresenceEntry) []model.PresenceEntry {
	out := make([]model.PresenceEntry, len(entries))
	copy(out, entries)
	return out
}

func removePresence(entries []model.PresenceEntry, userID string) []model.PresenceEntry {
	out := make([]model.PresenceEntry, 0, len(entries))
	for _, e := range entries {
		if e.UserID != userID {
			out = append(out, e)
		}
	}
	return out
}

// mergeCounters applies a partial update, overwriting only the fields
// present on the wire and clamping everything at zero.
func mergeCounters(c model.CounterSnapshot, p model.CountersPatch, at time.Time) model.CounterSnapshot {
	if p.TotalForums != nil {
		c.TotalForums = clamp(*p.TotalForums)
	}
	if p.PendingApprovals != nil {
		c.PendingApprovals = clamp(*p.PendingApprovals)
	}
	if p.ActiveThreads != nil {
		c.ActiveThreads = clamp(*p.ActiveThreads)
	}
	if p.FlaggedContent != nil {
		c.FlaggedContent = clamp(*p.FlaggedContent)
	}
	if p.ActiveUsers != nil {
		c.ActiveUsers = clamp(*p.ActiveUsers)
	}
	if p.OnlineUsers != nil {
		c.OnlineUsers = clamp(*p.OnlineUsers)
	}
	if p.TotalThreads != nil {
		c.TotalThreads = clamp(*p.TotalThreads)
	}
	if p.TotalAnswers != nil {
		c.TotalAnswers = clamp(*p.TotalAnswers)
	}
	c.LastUpdated = at
	return c
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func rawPayloadString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	// Unquote plain JSON strings so the log reads cleanly.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
