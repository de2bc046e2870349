package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateAlert_Validation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		errContains string
	}{
		{
			name:        "missing name",
			body:        `{"type":"any_activity"}`,
			errContains: "name is required",
		},
		{
			name:        "unknown type",
			body:        `{"name":"x","type":"balance_below"}`,
			errContains: "invalid alert condition",
		},
		{
			name:        "threshold without operator",
			body:        `{"name":"x","type":"amount_threshold","condition":{"value":10}}`,
			errContains: "operator is required",
		},
		{
			name:        "malformed JSON",
			body:        `{"name":`,
			errContains: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			rec := serve(handleCreateAlert(store, testLogger()), "POST /api/v1/alerts", http.MethodPost, "/api/v1/alerts", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec), tt.errContains)
			store.AssertNotCalled(t, "CreateAlertRule", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateAlert_GlobalAndScoped(t *testing.T) {
	store := new(MockStore)
	store.On("CreateAlertRule", mock.Anything, mock.MatchedBy(func(r *alerts.Rule) bool {
		return r.WalletID == nil && r.Type() == alerts.TypeAmountThreshold
	})).Return(func() *alerts.Rule {
		r, _ := alerts.NewRule("whale", nil, alerts.TypeAmountThreshold, json.RawMessage(`{"operator":"gt","value":"1000"}`))
		return r
	}(), nil).Once()
	store.On("CreateAlertRule", mock.Anything, mock.MatchedBy(func(r *alerts.Rule) bool {
		return r.WalletID != nil && *r.WalletID == "w1"
	})).Return(func() *alerts.Rule {
		r, _ := alerts.NewRule("any", strPtr("w1"), alerts.TypeAnyActivity, nil)
		return r
	}(), nil).Once()

	handler := handleCreateAlert(store, testLogger())

	rec := serve(handler, "POST /api/v1/alerts", http.MethodPost, "/api/v1/alerts",
		`{"name":"whale","walletId":"","type":"amount_threshold","condition":{"operator":"gt","value":1000}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var global alerts.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &global))
	assert.Nil(t, global.WalletID)
	assert.Equal(t, alerts.TypeAmountThreshold, global.Type())

	rec = serve(handler, "POST /api/v1/alerts", http.MethodPost, "/api/v1/alerts",
		`{"name":"any","walletId":"w1","type":"any_activity","condition":{}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var scoped alerts.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scoped))
	require.NotNil(t, scoped.WalletID)
	assert.Equal(t, "w1", *scoped.WalletID)

	store.AssertExpectations(t)
}

func TestCreateAlert_UnknownWallet(t *testing.T) {
	store := new(MockStore)
	store.On("CreateAlertRule", mock.Anything, mock.Anything).Return(nil, db.ErrInvalidReference)

	rec := serve(handleCreateAlert(store, testLogger()), "POST /api/v1/alerts", http.MethodPost, "/api/v1/alerts",
		`{"name":"x","walletId":"ghost","type":"any_activity"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wallet not found", errorBody(t, rec))
}

func TestUpdateAlert_ConditionKeepsType(t *testing.T) {
	existing, err := alerts.NewRule("big", nil, alerts.TypeAmountThreshold, json.RawMessage(`{"operator":"gt","value":5}`))
	require.NoError(t, err)

	t.Run("condition parsed against stored type", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetAlertRule", mock.Anything, "r1").Return(existing, nil)
		store.On("UpdateAlertRule", mock.Anything, "r1", mock.MatchedBy(func(p db.UpdateAlertRuleParams) bool {
			th, ok := p.Condition.(alerts.AmountThreshold)
			return ok && th.Operator == alerts.OpLessThan && th.Value == 2
		})).Return(existing, nil)

		rec := serve(handleUpdateAlert(store, testLogger()), "PATCH /api/v1/alerts/{id}", http.MethodPatch, "/api/v1/alerts/r1",
			`{"condition":{"operator":"lt","value":"2"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("condition of another type is rejected", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetAlertRule", mock.Anything, "r1").Return(existing, nil)

		rec := serve(handleUpdateAlert(store, testLogger()), "PATCH /api/v1/alerts/{id}", http.MethodPatch, "/api/v1/alerts/r1",
			`{"condition":{"programId":"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"}}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		store.AssertNotCalled(t, "UpdateAlertRule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("toggle only skips lookup", func(t *testing.T) {
		store := new(MockStore)
		store.On("UpdateAlertRule", mock.Anything, "r1", db.UpdateAlertRuleParams{Active: boolPtr(false)}).Return(existing, nil)

		rec := serve(handleUpdateAlert(store, testLogger()), "PATCH /api/v1/alerts/{id}", http.MethodPatch, "/api/v1/alerts/r1",
			`{"isActive":false}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		store.AssertNotCalled(t, "GetAlertRule", mock.Anything, mock.Anything)
	})

	t.Run("missing rule", func(t *testing.T) {
		store := new(MockStore)
		store.On("UpdateAlertRule", mock.Anything, "nope", mock.Anything).Return(nil, db.ErrNotFound)

		rec := serve(handleUpdateAlert(store, testLogger()), "PATCH /api/v1/alerts/{id}", http.MethodPatch, "/api/v1/alerts/nope",
			`{"name":"renamed"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteAlert(t *testing.T) {
	store := new(MockStore)
	store.On("DeleteAlertRule", mock.Anything, "r1").Return(nil)
	store.On("DeleteAlertRule", mock.Anything, "nope").Return(db.ErrNotFound)
	handler := handleDeleteAlert(store, testLogger())

	rec := serve(handler, "DELETE /api/v1/alerts/{id}", http.MethodDelete, "/api/v1/alerts/r1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(handler, "DELETE /api/v1/alerts/{id}", http.MethodDelete, "/api/v1/alerts/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotifications(t *testing.T) {
	store := new(MockStore)
	store.On("ListNotifications", mock.Anything, db.ListNotificationsParams{UnreadOnly: true, Limit: 5}).Return([]*alerts.Notification{
		{ID: "n1", RuleID: "r1", Title: "Wallet Activity"},
	}, nil)
	store.On("CountUnreadNotifications", mock.Anything).Return(int64(7), nil)

	rec := serve(handleListNotifications(store, testLogger()), "GET /api/v1/notifications", http.MethodGet, "/api/v1/notifications?unread_only=true&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notifications []*alerts.Notification `json:"notifications"`
		Unread        int64                  `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "r1", resp.Notifications[0].RuleID)
	assert.Equal(t, int64(7), resp.Unread)

	rec = serve(handleListNotifications(store, testLogger()), "GET /api/v1/notifications", http.MethodGet, "/api/v1/notifications?limit=501", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkNotifications(t *testing.T) {
	store := new(MockStore)
	store.On("MarkNotificationsRead", mock.Anything, []string{"n1", "n2"}, true).Return(int64(2), nil)
	handler := handleMarkNotifications(store, testLogger())

	rec := serve(handler, "PATCH /api/v1/notifications", http.MethodPatch, "/api/v1/notifications", `{"ids":["n1","n2"],"read":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":2}`, rec.Body.String())

	for _, body := range []string{`{"ids":["n1"]}`, `{"read":true}`, `{"ids":"n1","read":true}`} {
		rec = serve(handler, "PATCH /api/v1/notifications", http.MethodPatch, "/api/v1/notifications", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
