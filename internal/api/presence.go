package api

import (
	"context"
	"fmt"
	"net/url"
)

// ActiveUser is one participant the backend reports for an order room.
type ActiveUser struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	EditingField string `json:"editingField,omitempty"`
}

// ActiveUsersResponse is the backend's room-occupancy report. The
// websocket-management endpoints wrap their bodies in a success flag
// instead of relying on the status code alone.
type ActiveUsersResponse struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	OrderID     string       `json:"orderId"`
	ActiveUsers []ActiveUser `json:"activeUsers"`
	Count       int          `json:"count"`
}

// GetActiveUsers fetches who is currently in an order room. The
// fallback path uses it to recover presence while push is unavailable.
func (c *Client) GetActiveUsers(ctx context.Context, orderID string) (*ActiveUsersResponse, error) {
	var resp ActiveUsersResponse
	if err := c.get(ctx, "/api/v1/ws/orders/"+url.PathEscape(orderID)+"/users", nil, &resp); err != nil {
		return nil, fmt.Errorf("get active users %s: %w", orderID, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("get active users %s: backend error: %s", orderID, resp.Error)
	}
	return &resp, nil
}
