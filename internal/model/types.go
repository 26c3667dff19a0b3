package model

import "time"

// PendingItem is a forum submission awaiting moderation approval.
type PendingItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"` // always "pending" while queued
}

// CounterSnapshot holds the dashboard's aggregate counters.
// Every counter is kept >= 0 at all times.
type CounterSnapshot struct {
	TotalForums      int       `json:"totalForums"`
	PendingApprovals int       `json:"pendingApprovals"`
	ActiveThreads    int       `json:"activeThreads"`
	FlaggedContent   int       `json:"flaggedContent"`
	ActiveUsers      int       `json:"activeUsers"`
	OnlineUsers      int       `json:"onlineUsers"`
	TotalThreads     int       `json:"totalThreads"`
	TotalAnswers     int       `json:"totalAnswers"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// PresenceEntry is a currently-online user. The presence set is keyed by
// UserID, one entry per user.
type PresenceEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
	Role        string `json:"role"`
}

// ActivityEvent is one entry in the capped, most-recent-first activity log.
// ID is locally assigned at receipt time and distinguishes entries even when
// two events arrive within the same clock tick.
type ActivityEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// FlaggedReport is a content report awaiting moderator review.
type FlaggedReport struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	Reporter  string    `json:"reporter"`
	CreatedAt time.Time `json:"createdAt"`
}

// ServerSnapshot is an authoritative point-in-time copy of server state,
// assembled from the snapshot endpoints and used to correct local drift.
type ServerSnapshot struct {
	Pending  []PendingItem
	Counters CounterSnapshot
	Presence []PresenceEntry
	Activity []ActivityEvent
}
