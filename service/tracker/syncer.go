package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/solana"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultConcurrency bounds SyncAll.
	DefaultConcurrency = 4
	// DefaultSyncTimeout bounds a single shared wallet sync.
	DefaultSyncTimeout = 2 * time.Minute
)

// WalletStore looks wallets up for syncing.
type WalletStore interface {
	GetWallet(ctx context.Context, id string) (*db.Wallet, error)
	ListActiveWallets(ctx context.Context) ([]*db.Wallet, error)
}

// WalletIngestor is satisfied by *Ingestor.
type WalletIngestor interface {
	Ingest(ctx context.Context, wallet alerts.WalletRef) (*IngestResult, error)
}

// WalletNotifier is satisfied by *alerts.Notifier.
type WalletNotifier interface {
	Notify(ctx context.Context, wallet alerts.WalletRef, txs []*solana.ClassifiedTransaction) []*alerts.Notification
}

// SyncResult summarizes one wallet sync.
type SyncResult struct {
	WalletID            string `json:"walletId"`
	NewTransactionCount int    `json:"newTransactionCount"`
	TotalFetched        int    `json:"totalFetched"`
	Notifications       int    `json:"notifications"`
}

// WalletSyncError is a per-wallet failure reported by SyncAll.
type WalletSyncError struct {
	WalletID string `json:"walletId"`
	Error    string `json:"error"`
}

// SyncAllResult summarizes a SyncAll run.
type SyncAllResult struct {
	Results []*SyncResult      `json:"results"`
	Errors  []*WalletSyncError `json:"errors,omitempty"`
}

// Syncer runs ingest then notify for a wallet. Syncs of the same wallet
// never overlap; a call made while one is in flight shares its result.
type Syncer struct {
	wallets     WalletStore
	ingestor    WalletIngestor
	notifier    WalletNotifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
	syncTimeout time.Duration

	flight singleflight.Group
}

// NewSyncer creates a Syncer. m may be nil.
func NewSyncer(wallets WalletStore, ingestor WalletIngestor, notifier WalletNotifier, m *metrics.Metrics, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		wallets:     wallets,
		ingestor:    ingestor,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		concurrency: DefaultConcurrency,
		syncTimeout: DefaultSyncTimeout,
	}
}

// WithConcurrency sets how many wallets SyncAll syncs at once.
func (s *Syncer) WithConcurrency(n int) *Syncer {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithSyncTimeout bounds each wallet sync, independent of any caller.
func (s *Syncer) WithSyncTimeout(d time.Duration) *Syncer {
	if d > 0 {
		s.syncTimeout = d
	}
	return s
}

// Sync ingests new transactions for the wallet and notifies on them. It
// fails with ErrWalletNotFound or ErrSyncFailed.
//
// The sync itself runs detached from ctx, bounded by the sync timeout, so a
// caller going away does not fail the other callers sharing the run. Each
// caller still stops waiting when its own ctx is done.
func (s *Syncer) Sync(ctx context.Context, walletID string) (*SyncResult, error) {
	ch := s.flight.DoChan(walletID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
		defer cancel()
		return s.sync(runCtx, walletID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: wallet %s: %w", ErrSyncFailed, walletID, ctx.Err())
	case r := <-ch:
		if r.Shared {
			s.logger.DebugContext(ctx, "joined in-flight sync", "wallet_id", walletID)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*SyncResult)
		return &res, nil
	}
}

func (s *Syncer) sync(ctx context.Context, walletID string) (result *SyncResult, err error) {
	start := time.Now()
	defer func() {
		if s.metrics == nil {
			return
		}
		status := "success"
		switch {
		case errors.Is(err, ErrWalletNotFound):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		s.metrics.RecordSync(status, time.Since(start).Seconds())
	}()

	w, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
		}
		return nil, fmt.Errorf("%w: load wallet %s: %w", ErrSyncFailed, walletID, err)
	}
	wallet := alerts.WalletRef{ID: w.ID, Address: w.Address, Name: w.DisplayName()}

	ingested, ingestErr := s.ingestor.Ingest(ctx, wallet)
	if ingested == nil {
		return nil, ingestErr
	}

	result = &SyncResult{
		WalletID:            walletID,
		NewTransactionCount: len(ingested.New),
		TotalFetched:        ingested.Fetched,
	}
	if len(ingested.New) > 0 {
		// stored transactions are never re-presented, so notify even if
		// the ingest was cut short
		notifyCtx := ctx
		if ingestErr != nil {
			notifyCtx = context.WithoutCancel(ctx)
		}
		result.Notifications = len(s.notifier.Notify(notifyCtx, wallet, ingested.New))
	}
	if ingestErr != nil {
		return nil, ingestErr
	}

	s.logger.InfoContext(ctx, "wallet synced",
		"wallet_id", walletID,
		"new", result.NewTransactionCount,
		"fetched", result.TotalFetched,
		"notifications", result.Notifications,
	)
	return result, nil
}

// SyncAll syncs every active wallet. Per-wallet failures are collected in
// the result rather than aborting the run.
func (s *Syncer) SyncAll(ctx context.Context) (*SyncAllResult, error) {
	wallets, err := s.wallets.ListActiveWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active wallets: %w", err)
	}

	var (
		mu  sync.Mutex
		out = &SyncAllResult{Results: make([]*SyncResult, 0, len(wallets))}
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, w := range wallets {
		g.Go(func() error {
			res, err := s.Sync(ctx, w.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.WarnContext(ctx, "wallet sync failed",
					"wallet_id", w.ID,
					"error", err,
				)
				out.Errors = append(out.Errors, &WalletSyncError{WalletID: w.ID, Error: err.Error()})
				return nil
			}
			out.Results = append(out.Results, res)
			return nil
		})
	}
	g.Wait()

	s.logger.InfoContext(ctx, "synced all wallets",
		"wallets", len(wallets),
		"succeeded", len(out.Results),
		"failed", len(out.Errors),
	)
	return out, nil
}
