package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Wallet represents a tracked wallet.
type Wallet struct {
	ID               string     `json:"id"`
	Address          string     `json:"address"`
	Name             *string    `json:"name,omitempty"`
	Tag              *string    `json:"tag,omitempty"`
	Priority         int        `json:"priority"`
	Active           bool       `json:"isActive"`
	LastSync         *time.Time `json:"lastSync,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	TransactionCount int64      `json:"transactionCount"`
	AlertCount       int64      `json:"alertCount"`
}

// CreateWalletRequest registers a wallet. Priority defaults to 0.
type CreateWalletRequest struct {
	Address  string  `json:"address"`
	Name     *string `json:"name,omitempty"`
	Tag      *string `json:"tag,omitempty"`
	Priority *int    `json:"priority,omitempty"`
}

// UpdateWalletRequest holds optional changes; nil fields are left as is.
type UpdateWalletRequest struct {
	Name     *string `json:"name,omitempty"`
	Tag      *string `json:"tag,omitempty"`
	Priority *int    `json:"priority,omitempty"`
	Active   *bool   `json:"isActive,omitempty"`
}

// SyncResult summarizes one wallet sync.
type SyncResult struct {
	WalletID            string `json:"walletId"`
	NewTransactionCount int    `json:"newTransactionCount"`
	TotalFetched        int    `json:"totalFetched"`
	Notifications       int    `json:"notifications"`
}

// SyncAllResult summarizes a sync of every active wallet.
type SyncAllResult struct {
	Results []*SyncResult `json:"results"`
	Errors  []struct {
		WalletID string `json:"walletId"`
		Error    string `json:"error"`
	} `json:"errors,omitempty"`
}

// CreateWallet tells the server to start tracking a wallet.
func (c *Client) CreateWallet(ctx context.Context, req CreateWalletRequest) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallets", nil, req, &w, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet registered", "wallet_id", w.ID, "address", w.Address)
	return &w, nil
}

// GetWallet retrieves a wallet by id.
func (c *Client) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodGet, pathID("/api/v1/wallets", id), nil, nil, &w, http.StatusOK); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWallets retrieves tracked wallets, highest priority first.
func (c *Client) ListWallets(ctx context.Context, includeInactive bool) ([]*Wallet, error) {
	var query url.Values
	if includeInactive {
		query = url.Values{"include_inactive": {strconv.FormatBool(true)}}
	}

	var resp struct {
		Wallets []*Wallet `json:"wallets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/wallets", query, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// UpdateWallet edits a wallet.
func (c *Client) UpdateWallet(ctx context.Context, id string, req UpdateWalletRequest) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodPatch, pathID("/api/v1/wallets", id), nil, req, &w, http.StatusOK); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWallet stops tracking a wallet and removes its transactions.
func (c *Client) DeleteWallet(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, pathID("/api/v1/wallets", id), nil, nil, nil, http.StatusNoContent); err != nil {
		return err
	}
	c.logger.Debug("wallet deleted", "wallet_id", id)
	return nil
}

// SyncWallet syncs one wallet now.
func (c *Client) SyncWallet(ctx context.Context, id string) (*SyncResult, error) {
	var res SyncResult
	if err := c.do(ctx, http.MethodPost, pathID("/api/v1/wallets", id)+"/sync", nil, nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// SyncAll syncs every active wallet now.
func (c *Client) SyncAll(ctx context.Context) (*SyncAllResult, error) {
	var res SyncAllResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", nil, nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}
