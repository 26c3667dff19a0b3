package api

import (
	"context"
	"fmt"
)

// ApproveItem approves a pending item. The local read-model is not touched
// here: the resulting item-approved event arrives on the push channel.
func (c *Client) ApproveItem(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("approve item: id is required")
	}

	var resp actionResponse
	if err := c.post(ctx, "/moderation/items/"+id+"/approve", nil, &resp); err != nil {
		return fmt.Errorf("approve item %s: %w", id, err)
	}
	if !resp.Success {
		return fmt.Errorf("approve item %s rejected by server: %s", id, resp.Message)
	}
	return nil
}

// RejectItem rejects a pending item with a reason. As with ApproveItem,
// the state change arrives via the push channel, not the response body.
func (c *Client) RejectItem(ctx context.Context, id, reason string) error {
	if id == "" {
		return fmt.Errorf("reject item: id is required")
	}

	var resp actionResponse
	if err := c.post(ctx, "/moderation/items/"+id+"/reject", rejectRequest{Reason: reason}, &resp); err != nil {
		return fmt.Errorf("reject item %s: %w", id, err)
	}
	if !resp.Success {
		return fmt.Errorf("reject item %s rejected by server: %s", id, resp.Message)
	}
	return nil
}
