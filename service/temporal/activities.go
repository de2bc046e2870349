package temporal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/tracker"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// ErrTypeWalletNotFound is the application error type for syncs of deleted
// wallets. Such syncs are never retried.
const ErrTypeWalletNotFound = "WalletNotFound"

// SyncWalletInput identifies the wallet to sync.
type SyncWalletInput struct {
	WalletID string `json:"wallet_id"`
}

// WalletSyncer runs one wallet sync. It is satisfied by *tracker.Syncer.
type WalletSyncer interface {
	Sync(ctx context.Context, walletID string) (*tracker.SyncResult, error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	syncer  WalletSyncer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance. If m is nil, no metrics
// are recorded.
func NewActivities(syncer WalletSyncer, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		syncer:  syncer,
		metrics: m,
		logger:  logger,
	}
}

// SyncWallet ingests and notifies for one wallet.
func (a *Activities) SyncWallet(ctx context.Context, input SyncWalletInput) (*tracker.SyncResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("SyncWallet", time.Since(start).Seconds())
		}
	}()

	a.logger.DebugContext(ctx, "syncing wallet", "wallet_id", input.WalletID)

	res, err := a.syncer.Sync(ctx, input.WalletID)
	if err != nil {
		if errors.Is(err, tracker.ErrWalletNotFound) {
			a.logger.WarnContext(ctx, "scheduled wallet no longer exists", "wallet_id", input.WalletID)
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeWalletNotFound, err)
		}
		a.logger.ErrorContext(ctx, "wallet sync failed",
			"wallet_id", input.WalletID,
			"error", err,
		)
		return nil, err
	}
	return res, nil
}
