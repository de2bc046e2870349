package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Transaction is a stored classified transaction.
type Transaction struct {
	Signature     string     `json:"signature"`
	WalletID      string     `json:"walletId"`
	Type          string     `json:"type"`
	From          string     `json:"from"`
	To            *string    `json:"to,omitempty"`
	Amount        *string    `json:"amount,omitempty"`
	TokenMint     *string    `json:"tokenMint,omitempty"`
	TokenSymbol   *string    `json:"tokenSymbol,omitempty"`
	TokenDecimals *int       `json:"tokenDecimals,omitempty"`
	ProgramID     *string    `json:"programId,omitempty"`
	Fee           *string    `json:"fee,omitempty"`
	Status        string     `json:"status"`
	BlockTime     *time.Time `json:"blockTime,omitempty"`
	Slot          uint64     `json:"slot"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// TransactionFilter narrows a transaction listing. Zero values are ignored.
type TransactionFilter struct {
	WalletID string
	Type     string
	Limit    int
	Offset   int
}

// TransactionPage is one page of a transaction listing.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int64          `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}

// ListTransactions retrieves stored transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	query := url.Values{}
	if f.WalletID != "" {
		query.Set("wallet_id", f.WalletID)
	}
	if f.Type != "" {
		query.Set("type", f.Type)
	}
	if f.Limit > 0 {
		query.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		query.Set("offset", strconv.Itoa(f.Offset))
	}

	var page TransactionPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/transactions", query, nil, &page, http.StatusOK); err != nil {
		return nil, err
	}
	return &page, nil
}
