package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/solwatch/client"
	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/server"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/brojonat/solwatch/service/temporal"
	"github.com/brojonat/solwatch/service/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletAddr = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	otherAddr  = "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy"
)

// fakeChain serves a fixed history for every address.
type fakeChain struct {
	txs []*solana.RawTransaction
}

func (c *fakeChain) FetchRawTransactions(ctx context.Context, address string, limit int) ([]*solana.RawTransaction, error) {
	return c.txs, nil
}

func transfer(sig string) *solana.RawTransaction {
	return &solana.RawTransaction{
		Signature: sig,
		Meta:      &solana.RawMeta{Fee: 5000},
		Slot:      200,
		Instructions: []solana.RawInstruction{{
			Program:   "system",
			ProgramID: solana.SystemProgramID,
			Parsed:    true,
			Type:      "transfer",
			Info: map[string]any{
				"source":      walletAddr,
				"destination": otherAddr,
				"lamports":    json.Number("2500000000"),
			},
		}},
	}
}

// TestServerIntegration drives the full API against a real database.
func TestServerIntegration(t *testing.T) {
	db.SkipIfNoTestDB(t)
	store := db.NewTestStore(t)
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chain := &fakeChain{txs: []*solana.RawTransaction{transfer("sig-1"), transfer("sig-2")}}
	syncer := tracker.NewSyncer(
		store,
		tracker.NewIngestor(chain, store, nil, nil, logger),
		alerts.NewNotifier(store, nil, logger),
		nil,
		logger,
	)
	scheduler := temporal.NewMockScheduler()
	cfg := &config.Config{
		DefaultSyncInterval: 5 * time.Minute,
		MinSyncInterval:     time.Minute,
		SyncFetchTimeout:    time.Minute,
	}

	srv := server.New(":0", cfg, store.Store, syncer, scheduler, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewClient(ts.URL, nil, nil)
	ctx := context.Background()

	// register
	priority := 2
	wallet, err := c.CreateWallet(ctx, client.CreateWalletRequest{Address: walletAddr, Priority: &priority})
	require.NoError(t, err)
	assert.True(t, wallet.Active)
	interval, ok := scheduler.GetScheduleInterval(wallet.ID)
	require.True(t, ok)
	assert.Equal(t, time.Minute, interval)

	_, err = c.CreateWallet(ctx, client.CreateWalletRequest{Address: walletAddr})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	// a global rule for large transfers
	_, err = c.CreateAlert(ctx, client.CreateAlertRequest{
		Name:      "big sol",
		Type:      "amount_threshold",
		Condition: json.RawMessage(`{"operator":"gt","value":"1"}`),
	})
	require.NoError(t, err)

	// first sync stores both transfers and fires twice
	res, err := c.SyncWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewTransactionCount)
	assert.Equal(t, 2, res.TotalFetched)
	assert.Equal(t, 2, res.Notifications)

	// second sync is a no-op
	res, err = c.SyncWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Zero(t, res.NewTransactionCount)
	assert.Zero(t, res.Notifications)

	page, err := c.ListTransactions(ctx, client.TransactionFilter{WalletID: wallet.ID, Type: "sol_transfer"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "2.5", *page.Transactions[0].Amount)

	notifications, err := c.ListNotifications(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, notifications.Notifications, 2)
	assert.Equal(t, int64(2), notifications.Unread)

	ids := []string{notifications.Notifications[0].ID, notifications.Notifications[1].ID}
	updated, err := c.MarkNotifications(ctx, ids, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	got, err := c.GetWallet(ctx, wallet.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSync)
	assert.Equal(t, int64(2), got.TransactionCount)

	// delete
	require.NoError(t, c.DeleteWallet(ctx, wallet.ID))
	assert.False(t, scheduler.ScheduleExists(wallet.ID))

	_, err = c.GetWallet(ctx, wallet.ID)
	assert.True(t, client.IsNotFound(err))

	_, err = c.SyncWallet(ctx, wallet.ID)
	assert.True(t, client.IsNotFound(err))
}

func TestHealthEndpoint(t *testing.T) {
	db.SkipIfNoTestDB(t)
	store := db.NewTestStore(t)
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(":0", &config.Config{}, store.Store, nil, nil, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}
