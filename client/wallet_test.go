package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWallet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/wallets", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wallet123", body["address"])
		assert.Equal(t, float64(2), body["priority"])
		assert.NotContains(t, body, "tag")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "w1",
			"address":  "wallet123",
			"priority": 2,
			"isActive": true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	priority := 2
	wallet, err := client.CreateWallet(context.Background(), CreateWalletRequest{Address: "wallet123", Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, "w1", wallet.ID)
	assert.True(t, wallet.Active)
}

func TestCreateWallet_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid Solana address",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.CreateWallet(context.Background(), CreateWalletRequest{Address: "invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Solana address")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestDeleteWallet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/v1/wallets/w1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.DeleteWallet(context.Background(), "w1"))
}

func TestGetWallet_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "wallet not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	wallet, err := client.GetWallet(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, wallet)
	assert.True(t, IsNotFound(err))
}

func TestListWallets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/wallets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_inactive"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"wallets":[
			{"id":"w1","address":"a","priority":2,"isActive":true,"transactionCount":12},
			{"id":"w2","address":"b","priority":0,"isActive":false,"lastSync":"2025-01-01T00:00:00Z"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	wallets, err := client.ListWallets(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, int64(12), wallets[0].TransactionCount)
	assert.Nil(t, wallets[0].LastSync)
	require.NotNil(t, wallets[1].LastSync)
	assert.False(t, wallets[1].Active)
}

func TestListWallets_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListWallets(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.Contains(t, err.Error(), "500")
}

func TestUpdateWallet_SendsOnlySetFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PATCH", r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"isActive": false}, body)

		json.NewEncoder(w).Encode(map[string]interface{}{"id": "w1", "isActive": false})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	active := false
	wallet, err := client.UpdateWallet(context.Background(), "w1", UpdateWalletRequest{Active: &active})
	require.NoError(t, err)
	assert.False(t, wallet.Active)
}

func TestSyncWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/wallets/w1/sync", r.URL.Path)
		w.Write([]byte(`{"walletId":"w1","newTransactionCount":3,"totalFetched":20,"notifications":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	res, err := client.SyncWallet(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{WalletID: "w1", NewTransactionCount: 3, TotalFetched: 20, Notifications: 1}, res)
}

func TestSyncWallet_BadGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"sync failed: chain data unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.SyncWallet(context.Background(), "w1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func TestListTransactions_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "w1", q.Get("wallet_id"))
		assert.Equal(t, "spl_transfer", q.Get("type"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Empty(t, q.Get("offset"))

		w.Write([]byte(`{"transactions":[{"signature":"sig1","type":"spl_transfer","from":"a","amount":"1.5","status":"success","slot":7}],"total":9,"limit":5,"offset":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	page, err := client.ListTransactions(context.Background(), TransactionFilter{WalletID: "w1", Type: "spl_transfer", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(9), page.Total)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "1.5", *page.Transactions[0].Amount)
	assert.Equal(t, uint64(7), page.Transactions[0].Slot)
}
