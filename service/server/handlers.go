package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/brojonat/solwatch/service/temporal"
	"github.com/brojonat/solwatch/service/tracker"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 64      // Solana addresses are at most 44 chars
	maxNameLength      = 100
	maxPriority        = 2

	defaultTransactionLimit = 100
	maxTransactionLimit     = 1000
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// WalletStore is the wallet storage the handlers use.
type WalletStore interface {
	CreateWallet(ctx context.Context, params db.CreateWalletParams) (*db.Wallet, error)
	GetWallet(ctx context.Context, id string) (*db.Wallet, error)
	ListWallets(ctx context.Context, params db.ListWalletsParams) ([]*db.Wallet, error)
	UpdateWallet(ctx context.Context, id string, params db.UpdateWalletParams) (*db.Wallet, error)
	DeleteWallet(ctx context.Context, id string) error
}

// TransactionStore is the transaction storage the handlers use.
type TransactionStore interface {
	ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]*db.Transaction, error)
	CountTransactions(ctx context.Context, params db.ListTransactionsParams) (int64, error)
}

// Syncer runs wallet syncs on demand.
type Syncer interface {
	Sync(ctx context.Context, walletID string) (*tracker.SyncResult, error)
	SyncAll(ctx context.Context) (*tracker.SyncAllResult, error)
}

// handleListWallets returns a handler that lists registered wallets.
// GET /api/v1/wallets?include_inactive=true
func handleListWallets(store WalletStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		includeInactive, err := parseBoolParam(r, "include_inactive")
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		wallets, err := store.ListWallets(r.Context(), db.ListWalletsParams{IncludeInactive: includeInactive})
		if err != nil {
			logger.Error("failed to list wallets", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if wallets == nil {
			wallets = []*db.Wallet{}
		}

		logger.Debug("wallets listed", "count", len(wallets))
		writeJSON(w, map[string]interface{}{
			"wallets": wallets,
		}, http.StatusOK)
	})
}

// handleCreateWallet returns a handler that registers a wallet and, when a
// scheduler is configured, creates its sync schedule.
// POST /api/v1/wallets
func handleCreateWallet(store WalletStore, scheduler temporal.Scheduler, intervalFor func(int) time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address  string  `json:"address"`
			Name     *string `json:"name"`
			Tag      *string `json:"tag"`
			Priority *int    `json:"priority"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if err := validateAddress(req.Address); err != nil {
			logger.Debug("invalid address", "address", req.Address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		priority := 0
		if req.Priority != nil {
			priority = *req.Priority
		}
		if err := validatePriority(priority); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateLabel("name", req.Name); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateLabel("tag", req.Tag); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		wallet, err := store.CreateWallet(r.Context(), db.CreateWalletParams{
			Address:  req.Address,
			Name:     req.Name,
			Tag:      req.Tag,
			Priority: priority,
		})
		if err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				writeError(w, "wallet already exists", http.StatusConflict)
				return
			}
			logger.Error("failed to create wallet", "address", req.Address, "error", err)
			writeError(w, "failed to create wallet", http.StatusInternalServerError)
			return
		}

		if scheduler != nil {
			if err := scheduler.UpsertWalletSchedule(r.Context(), wallet.ID, intervalFor(wallet.Priority)); err != nil {
				logger.Error("failed to create schedule", "wallet_id", wallet.ID, "error", err)

				// Rollback: a wallet without a schedule would never sync
				if delErr := store.DeleteWallet(r.Context(), wallet.ID); delErr != nil {
					logger.Error("failed to rollback wallet creation", "wallet_id", wallet.ID, "error", delErr)
				}

				writeError(w, "failed to create schedule for wallet", http.StatusInternalServerError)
				return
			}
		}

		logger.Info("wallet registered",
			"wallet_id", wallet.ID,
			"address", wallet.Address,
			"priority", wallet.Priority,
			"scheduled", scheduler != nil,
		)
		writeJSON(w, wallet, http.StatusCreated)
	})
}

// handleGetWallet returns a handler that retrieves a wallet by id.
// GET /api/v1/wallets/{id}
func handleGetWallet(store WalletStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		wallet, err := store.GetWallet(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get wallet", "wallet_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, wallet, http.StatusOK)
	})
}

// handleUpdateWallet returns a handler that edits a wallet. Priority and
// active changes are mirrored onto the wallet's schedule.
// PATCH /api/v1/wallets/{id}
func handleUpdateWallet(store WalletStore, scheduler temporal.Scheduler, intervalFor func(int) time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req struct {
			Name     *string `json:"name"`
			Tag      *string `json:"tag"`
			Priority *int    `json:"priority"`
			Active   *bool   `json:"isActive"`
		}
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if req.Priority != nil {
			if err := validatePriority(*req.Priority); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if err := validateLabel("name", req.Name); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateLabel("tag", req.Tag); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		wallet, err := store.UpdateWallet(r.Context(), id, db.UpdateWalletParams{
			Name:     req.Name,
			Tag:      req.Tag,
			Priority: req.Priority,
			Active:   req.Active,
		})
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to update wallet", "wallet_id", id, "error", err)
			writeError(w, "failed to update wallet", http.StatusInternalServerError)
			return
		}

		if scheduler != nil && (req.Priority != nil || req.Active != nil) {
			// Drift left here is repaired by the worker's reconcile on start.
			if wallet.Active {
				if err := scheduler.UpsertWalletSchedule(r.Context(), wallet.ID, intervalFor(wallet.Priority)); err != nil {
					logger.Error("failed to update schedule", "wallet_id", wallet.ID, "error", err)
				}
			} else if err := scheduler.DeleteWalletSchedule(r.Context(), wallet.ID); err != nil && !errors.Is(err, temporal.ErrScheduleNotFound) {
				logger.Error("failed to delete schedule", "wallet_id", wallet.ID, "error", err)
			}
		}

		logger.Info("wallet updated", "wallet_id", wallet.ID, "priority", wallet.Priority, "active", wallet.Active)
		writeJSON(w, wallet, http.StatusOK)
	})
}

// handleDeleteWallet returns a handler that removes a wallet, its
// transactions and its schedule.
// DELETE /api/v1/wallets/{id}
func handleDeleteWallet(store WalletStore, scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if _, err := store.GetWallet(r.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get wallet", "wallet_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		// Delete the schedule first so a failure leaves the wallet intact.
		if scheduler != nil {
			if err := scheduler.DeleteWalletSchedule(r.Context(), id); err != nil && !errors.Is(err, temporal.ErrScheduleNotFound) {
				logger.Error("failed to delete schedule", "wallet_id", id, "error", err)
				writeError(w, "failed to delete schedule for wallet", http.StatusInternalServerError)
				return
			}
		}

		if err := store.DeleteWallet(r.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete wallet", "wallet_id", id, "error", err)
			writeError(w, "failed to delete wallet", http.StatusInternalServerError)
			return
		}

		logger.Info("wallet deleted", "wallet_id", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleSyncWallet returns a handler that syncs one wallet immediately.
// POST /api/v1/wallets/{id}/sync
func handleSyncWallet(syncer Syncer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		result, err := syncer.Sync(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, tracker.ErrWalletNotFound):
				writeError(w, "wallet not found", http.StatusNotFound)
			case errors.Is(err, tracker.ErrSyncFailed):
				logger.Warn("wallet sync failed", "wallet_id", id, "error", err)
				writeError(w, "sync failed: chain data unavailable", http.StatusBadGateway)
			default:
				logger.Error("wallet sync failed", "wallet_id", id, "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, result, http.StatusOK)
	})
}

// handleSyncAll returns a handler that syncs every active wallet.
// POST /api/v1/sync
func handleSyncAll(syncer Syncer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := syncer.SyncAll(r.Context())
		if err != nil {
			logger.Error("sync all failed", "error", err)
			writeError(w, "failed to sync wallets", http.StatusInternalServerError)
			return
		}

		logger.Info("sync all completed", "synced", len(result.Results), "failed", len(result.Errors))
		writeJSON(w, result, http.StatusOK)
	})
}

// handleListTransactions returns a handler that lists stored transactions.
// GET /api/v1/transactions?wallet_id=ID&type=TYPE&limit=N&offset=N
func handleListTransactions(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		category := query.Get("type")
		if category != "" && !solana.Category(category).Valid() {
			writeError(w, fmt.Sprintf("invalid type %q: must be one of sol_transfer, spl_transfer, nft_transfer, program_interaction", category), http.StatusBadRequest)
			return
		}

		limit, err := parseIntParam(r, "limit", defaultTransactionLimit, 1, maxTransactionLimit)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		offset, err := parseIntParam(r, "offset", 0, 0, -1)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		params := db.ListTransactionsParams{
			WalletID: query.Get("wallet_id"),
			Category: category,
			Limit:    int32(limit),
			Offset:   int32(offset),
		}

		transactions, err := store.ListTransactions(r.Context(), params)
		if err != nil {
			logger.Error("failed to list transactions", "wallet_id", params.WalletID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		total, err := store.CountTransactions(r.Context(), params)
		if err != nil {
			logger.Error("failed to count transactions", "wallet_id", params.WalletID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if transactions == nil {
			transactions = []*db.Transaction{}
		}

		logger.Debug("transactions listed", "wallet_id", params.WalletID, "count", len(transactions))
		writeJSON(w, map[string]interface{}{
			"transactions": transactions,
			"total":        total,
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}

// decodeBody decodes a size-limited JSON body into dst. It writes the
// error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug("failed to decode request body", "path", r.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress checks that address is a well-formed Solana public key.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return errorf("invalid Solana address: %v", err)
	}

	return nil
}

func validatePriority(priority int) error {
	if priority < 0 || priority > maxPriority {
		return errorf("priority must be between 0 and %d", maxPriority)
	}
	return nil
}

func validateLabel(field string, value *string) error {
	if value == nil {
		return nil
	}
	if len(*value) > maxNameLength {
		return errorf("%s too long: maximum length is %d characters", field, maxNameLength)
	}
	for _, r := range *value {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s: control characters not allowed", field)
		}
	}
	return nil
}

// parseIntParam reads an integer query parameter. A negative max means
// unbounded.
func parseIntParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid %s parameter: must be an integer", name)
	}
	if v < min {
		return 0, errorf("%s must be at least %d", name, min)
	}
	if max >= 0 && v > max {
		return 0, errorf("%s cannot exceed %d", name, max)
	}
	return v, nil
}

func parseBoolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errorf("invalid %s parameter: must be true or false", name)
	}
	return v, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
