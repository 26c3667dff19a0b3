package api

import (
	"context"
	"fmt"

	"github.com/openagora/dashsync/internal/model"
)

// GetPendingItems fetches the full moderation queue.
func (c *Client) GetPendingItems(ctx context.Context) ([]model.PendingItem, error) {
	var resp pendingItemsResponse
	if err := c.get(ctx, "/moderation/pending", nil, &resp); err != nil {
		return nil, fmt.Errorf("get pending items: %w", err)
	}

	items := make([]model.PendingItem, 0, len(resp.Items))
	for _, w := range resp.Items {
		items = append(items, w.ToModel())
	}
	return items, nil
}

// GetCounters fetches the authoritative counter snapshot.
func (c *Client) GetCounters(ctx context.Context) (model.CounterSnapshot, error) {
	var resp countersResponse
	if err := c.get(ctx, "/stats/counters", nil, &resp); err != nil {
		return model.CounterSnapshot{}, fmt.Errorf("get counters: %w", err)
	}
	return resp.Counters, nil
}

// GetOnlinePresence fetches the set of currently-online users.
func (c *Client) GetOnlinePresence(ctx context.Context) ([]model.PresenceEntry, error) {
	var resp presenceResponse
	if err := c.get(ctx, "/presence/online", nil, &resp); err != nil {
		return nil, fmt.Errorf("get online presence: %w", err)
	}
	return resp.Users, nil
}

// GetRecentActivity fetches the most recent activity entries.
func (c *Client) GetRecentActivity(ctx context.Context) ([]model.ActivityEvent, error) {
	var resp activityResponse
	if err := c.get(ctx, "/activity/recent", nil, &resp); err != nil {
		return nil, fmt.Errorf("get recent activity: %w", err)
	}

	events := make([]model.ActivityEvent, 0, len(resp.Activities))
	for _, w := range resp.Activities {
		events = append(events, w.ToModel())
	}
	return events, nil
}

// GetSnapshot fetches all four snapshot endpoints and assembles a full
// server snapshot. Any single failure fails the whole snapshot so the
// reconciler never merges a partial view.
func (c *Client) GetSnapshot(ctx context.Context) (model.ServerSnapshot, error) {
	pending, err := c.GetPendingItems(ctx)
	if err != nil {
		return model.ServerSnapshot{}, err
	}

	counters, err := c.GetCounters(ctx)
	if err != nil {
		return model.ServerSnapshot{}, err
	}

	presence, err := c.GetOnlinePresence(ctx)
	if err != nil {
		return model.ServerSnapshot{}, err
	}

	activity, err := c.GetRecentActivity(ctx)
	if err != nil {
		return model.ServerSnapshot{}, err
	}

	return model.ServerSnapshot{
		Pending:  pending,
		Counters: counters,
		Presence: presence,
		Activity: activity,
	}, nil
}
