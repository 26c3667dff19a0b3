package api

import (
	"encoding/json"
	"time"

	"github.com/openagora/dashsync/internal/model"
)

// pendingItemsResponse is the wire response for the pending items endpoint.
type pendingItemsResponse struct {
	Items []wirePendingItem `json:"items"`
}

// wirePendingItem is a pending item as serialized by the backend.
type wirePendingItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Creator     string `json:"creator"`
	CreatedAt   int64  `json:"createdAt"` // unix seconds
	Status      string `json:"status"`
}

// ToModel converts a wire pending item to the read-model type.
func (w wirePendingItem) ToModel() model.PendingItem {
	status := w.Status
	if status == "" {
		status = "pending"
	}
	return model.PendingItem{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Category:    w.Category,
		Creator:     w.Creator,
		CreatedAt:   time.Unix(w.CreatedAt, 0).UTC(),
		Status:      status,
	}
}

// countersResponse is the wire response for the counters endpoint.
type countersResponse struct {
	Counters model.CounterSnapshot `json:"counters"`
}

// presenceResponse is the wire response for the online presence endpoint.
type presenceResponse struct {
	Users []model.PresenceEntry `json:"users"`
}

// activityResponse is the wire response for the recent activity endpoint.
type activityResponse struct {
	Activities []wireActivity `json:"activities"`
}

// wireActivity is an activity entry as serialized by the backend.
type wireActivity struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // unix seconds
}

// ToModel converts a wire activity entry to the read-model type.
func (w wireActivity) ToModel() model.ActivityEvent {
	return model.ActivityEvent{
		ID:        w.ID,
		Type:      w.Type,
		Payload:   string(w.Payload),
		Timestamp: time.Unix(w.Timestamp, 0).UTC(),
	}
}

// actionResponse is the wire response for moderation action endpoints.
type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// rejectRequest is the body for the reject endpoint.
type rejectRequest struct {
	Reason string `json:"reason"`
}
