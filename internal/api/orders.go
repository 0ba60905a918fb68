package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/avpopescu/freight-realtime/internal/model"
)

// ListOrdersOptions filters a ListOrders call.
type ListOrdersOptions struct {
	Status model.Status // Filter by lifecycle status
	Client string       // Filter by client name
	Limit  int          // Page size (server default if 0)
	Offset int          // Page offset
}

// OrdersResponse is a page of orders.
type OrdersResponse struct {
	Orders []model.Order `json:"orders"`
	Total  int           `json:"total"`
}

// ListOrders fetches a page of orders.
func (c *Client) ListOrders(ctx context.Context, opts ListOrdersOptions) (*OrdersResponse, error) {
	query := url.Values{}

	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Client != "" {
		query.Set("client", opts.Client)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var resp OrdersResponse
	if err := c.get(ctx, "/api/v1/orders", query, &resp); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return &resp, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	if err := c.get(ctx, "/api/v1/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &order, nil
}
