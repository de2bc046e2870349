package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/db"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
	maxNotificationIDs       = 1000
)

// AlertStore is the alert rule storage the handlers use.
type AlertStore interface {
	CreateAlertRule(ctx context.Context, rule *alerts.Rule) (*alerts.Rule, error)
	GetAlertRule(ctx context.Context, id string) (*alerts.Rule, error)
	ListAlertRules(ctx context.Context, params db.ListAlertRulesParams) ([]*alerts.Rule, error)
	UpdateAlertRule(ctx context.Context, id string, params db.UpdateAlertRuleParams) (*alerts.Rule, error)
	DeleteAlertRule(ctx context.Context, id string) error
}

// NotificationStore is the notification storage the handlers use.
type NotificationStore interface {
	ListNotifications(ctx context.Context, params db.ListNotificationsParams) ([]*alerts.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string, read bool) (int64, error)
	CountUnreadNotifications(ctx context.Context) (int64, error)
}

// handleListAlerts returns a handler that lists alert rules.
// GET /api/v1/alerts?wallet_id=ID&include_inactive=true
func handleListAlerts(store AlertStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		includeInactive, err := parseBoolParam(r, "include_inactive")
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rules, err := store.ListAlertRules(r.Context(), db.ListAlertRulesParams{
			WalletID:        r.URL.Query().Get("wallet_id"),
			IncludeInactive: includeInactive,
		})
		if err != nil {
			logger.Error("failed to list alert rules", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if rules == nil {
			rules = []*alerts.Rule{}
		}

		writeJSON(w, map[string]interface{}{
			"alerts": rules,
		}, http.StatusOK)
	})
}

// handleCreateAlert returns a handler that creates an alert rule.
// POST /api/v1/alerts
func handleCreateAlert(store AlertStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string          `json:"name"`
			WalletID  *string         `json:"walletId"`
			Type      alerts.RuleType `json:"type"`
			Condition json.RawMessage `json:"condition"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}
		if err := validateLabel("name", &req.Name); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rule, err := alerts.NewRule(req.Name, req.WalletID, req.Type, req.Condition)
		if err != nil {
			logger.Debug("invalid alert rule", "type", req.Type, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		created, err := store.CreateAlertRule(r.Context(), rule)
		if err != nil {
			if errors.Is(err, db.ErrInvalidReference) {
				writeError(w, "wallet not found", http.StatusBadRequest)
				return
			}
			logger.Error("failed to create alert rule", "name", rule.Name, "error", err)
			writeError(w, "failed to create alert rule", http.StatusInternalServerError)
			return
		}

		logger.Info("alert rule created",
			"rule_id", created.ID,
			"type", created.Type(),
			"global", created.WalletID == nil,
		)
		writeJSON(w, created, http.StatusCreated)
	})
}

// handleUpdateAlert returns a handler that renames, toggles or edits the
// condition of a rule. The rule type cannot change.
// PATCH /api/v1/alerts/{id}
func handleUpdateAlert(store AlertStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req struct {
			Name      *string         `json:"name"`
			Active    *bool           `json:"isActive"`
			Condition json.RawMessage `json:"condition"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}
		if req.Name != nil && *req.Name == "" {
			writeError(w, "name cannot be empty", http.StatusBadRequest)
			return
		}
		if err := validateLabel("name", req.Name); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		params := db.UpdateAlertRuleParams{Name: req.Name, Active: req.Active}
		if len(req.Condition) > 0 {
			existing, err := store.GetAlertRule(r.Context(), id)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					writeError(w, "alert rule not found", http.StatusNotFound)
					return
				}
				logger.Error("failed to get alert rule", "rule_id", id, "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			cond, err := alerts.ParseCondition(existing.Type(), req.Condition)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			params.Condition = cond
		}

		rule, err := store.UpdateAlertRule(r.Context(), id, params)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "alert rule not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to update alert rule", "rule_id", id, "error", err)
			writeError(w, "failed to update alert rule", http.StatusInternalServerError)
			return
		}

		logger.Info("alert rule updated", "rule_id", rule.ID, "active", rule.Active)
		writeJSON(w, rule, http.StatusOK)
	})
}

// handleDeleteAlert returns a handler that deletes a rule and its
// notifications.
// DELETE /api/v1/alerts/{id}
func handleDeleteAlert(store AlertStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := store.DeleteAlertRule(r.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "alert rule not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete alert rule", "rule_id", id, "error", err)
			writeError(w, "failed to delete alert rule", http.StatusInternalServerError)
			return
		}

		logger.Info("alert rule deleted", "rule_id", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleListNotifications returns a handler that lists notifications newest
// first, along with the total unread count.
// GET /api/v1/notifications?unread_only=true&limit=N
func handleListNotifications(store NotificationStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unreadOnly, err := parseBoolParam(r, "unread_only")
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit, err := parseIntParam(r, "limit", defaultNotificationLimit, 1, maxNotificationLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		notifications, err := store.ListNotifications(r.Context(), db.ListNotificationsParams{
			UnreadOnly: unreadOnly,
			Limit:      int32(limit),
		})
		if err != nil {
			logger.Error("failed to list notifications", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		unread, err := store.CountUnreadNotifications(r.Context())
		if err != nil {
			logger.Error("failed to count unread notifications", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if notifications == nil {
			notifications = []*alerts.Notification{}
		}

		writeJSON(w, map[string]interface{}{
			"notifications": notifications,
			"unread":        unread,
		}, http.StatusOK)
	})
}

// handleMarkNotifications returns a handler that sets the read flag on a
// batch of notifications.
// PATCH /api/v1/notifications
func handleMarkNotifications(store NotificationStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs  []string `json:"ids"`
			Read *bool    `json:"read"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}
		if req.IDs == nil || req.Read == nil {
			writeError(w, "ids and read are required", http.StatusBadRequest)
			return
		}
		if len(req.IDs) > maxNotificationIDs {
			writeError(w, "too many ids: maximum is 1000", http.StatusBadRequest)
			return
		}

		updated, err := store.MarkNotificationsRead(r.Context(), req.IDs, *req.Read)
		if err != nil {
			logger.Error("failed to update notifications", "count", len(req.IDs), "error", err)
			writeError(w, "failed to update notifications", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"updated": updated,
		}, http.StatusOK)
	})
}
