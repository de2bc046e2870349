package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// AlertRule is a user-defined alert. A nil WalletID makes the rule global.
type AlertRule struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	WalletID  *string         `json:"walletId"`
	Type      string          `json:"type"`
	Condition json.RawMessage `json:"condition"`
	Active    bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateAlertRequest creates a rule. Condition's shape depends on Type.
type CreateAlertRequest struct {
	Name      string          `json:"name"`
	WalletID  *string         `json:"walletId,omitempty"`
	Type      string          `json:"type"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

// UpdateAlertRequest holds optional rule changes.
type UpdateAlertRequest struct {
	Name      *string         `json:"name,omitempty"`
	Active    *bool           `json:"isActive,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

// Notification records that a rule fired for a transaction.
type Notification struct {
	ID      string `json:"id"`
	RuleID  string `json:"alertId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Data    struct {
		WalletID             string  `json:"walletId,omitempty"`
		TransactionSignature string  `json:"transactionSignature"`
		TransactionType      string  `json:"transactionType"`
		Amount               *string `json:"amount,omitempty"`
		TokenSymbol          *string `json:"tokenSymbol,omitempty"`
	} `json:"data"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationList is a page of notifications plus the unread total.
type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	Unread        int64           `json:"unread"`
}

// ListAlerts retrieves rules, optionally only those scoped to walletID.
func (c *Client) ListAlerts(ctx context.Context, walletID string, includeInactive bool) ([]*AlertRule, error) {
	query := url.Values{}
	if walletID != "" {
		query.Set("wallet_id", walletID)
	}
	if includeInactive {
		query.Set("include_inactive", "true")
	}

	var resp struct {
		Alerts []*AlertRule `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/alerts", query, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// CreateAlert creates a rule.
func (c *Client) CreateAlert(ctx context.Context, req CreateAlertRequest) (*AlertRule, error) {
	var rule AlertRule
	if err := c.do(ctx, http.MethodPost, "/api/v1/alerts", nil, req, &rule, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.Debug("alert rule created", "rule_id", rule.ID, "type", rule.Type)
	return &rule, nil
}

// UpdateAlert edits a rule.
func (c *Client) UpdateAlert(ctx context.Context, id string, req UpdateAlertRequest) (*AlertRule, error) {
	var rule AlertRule
	if err := c.do(ctx, http.MethodPatch, pathID("/api/v1/alerts", id), nil, req, &rule, http.StatusOK); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteAlert deletes a rule and its notifications.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathID("/api/v1/alerts", id), nil, nil, nil, http.StatusNoContent)
}

// ListNotifications retrieves notifications newest first. A zero limit
// uses the server default.
func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool, limit int) (*NotificationList, error) {
	query := url.Values{}
	if unreadOnly {
		query.Set("unread_only", "true")
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list NotificationList
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", query, nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return &list, nil
}

// MarkNotifications sets the read flag on ids and returns how many changed.
func (c *Client) MarkNotifications(ctx context.Context, ids []string, read bool) (int64, error) {
	req := struct {
		IDs  []string `json:"ids"`
		Read bool     `json:"read"`
	}{IDs: ids, Read: read}

	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/v1/notifications", nil, req, &resp, http.StatusOK); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}
