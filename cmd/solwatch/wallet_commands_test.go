package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs the CLI against serverURL and returns what it printed to stdout.
func runApp(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	out := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		out <- buf.String()
	}()

	argv := append([]string{"solwatch", "--server", serverURL}, args...)
	runErr := newApp().Run(argv)

	w.Close()
	os.Stdout = oldStdout
	return <-out, runErr
}

func TestWalletAdd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/wallets", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", body["address"])
		assert.Equal(t, "treasury", body["name"])
		assert.Equal(t, float64(2), body["priority"])
		assert.NotContains(t, body, "tag")

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"w1","address":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM","name":"treasury","priority":2,"isActive":true}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "wallets", "add", "--name", "treasury", "--priority", "2", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet added")
	assert.Contains(t, out, "w1")
}

func TestWalletAdd_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"wallet already exists"}`))
	}))
	defer server.Close()

	_, err := runApp(t, server.URL, "wallets", "add", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "wallet already exists")
}

func TestWalletCommands_ArgValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"add without address", []string{"wallets", "add"}, "wallet address"},
		{"get without id", []string{"wallets", "get"}, "wallet ID"},
		{"rm with two ids", []string{"wallets", "rm", "a", "b"}, "wallet ID"},
		{"update without changes", []string{"wallets", "update", "w1"}, "nothing to update"},
		{"sync without id", []string{"wallets", "sync"}, "--all"},
		{"sync all with id", []string{"wallets", "sync", "--all", "w1"}, "no arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, server.URL, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWalletUpdate_OnlySetFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PATCH", r.Method)
		assert.Equal(t, "/api/v1/wallets/w1", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"isActive": false}, body)

		w.Write([]byte(`{"id":"w1","address":"addr","priority":1,"isActive":false}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "wallets", "update", "--active=false", "w1")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet updated")
	assert.Contains(t, out, "Active:       false")
}

func TestWalletList_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_inactive"))
		w.Write([]byte(`{"wallets":[{"id":"w1","address":"a1","priority":0,"isActive":true},{"id":"w2","address":"a2","priority":1,"isActive":false}]}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "--json", "wallets", "ls", "--all")
	require.NoError(t, err)

	var wallets []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &wallets))
	require.Len(t, wallets, 2)
	assert.Equal(t, "w2", wallets[1]["id"])
}

func TestWalletSyncAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/sync", r.URL.Path)
		w.Write([]byte(`{"results":[{"walletId":"w1","newTransactionCount":3,"totalFetched":10,"notifications":1}],"errors":[{"walletId":"w2","error":"rpc down"}]}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "wallets", "sync", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "w1")
	assert.Contains(t, out, "WALLET ID")
}

func TestWalletRemove(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/v1/wallets/w1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "wallets", "rm", "w1")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet removed: w1")
}
