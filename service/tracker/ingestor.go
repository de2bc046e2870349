// Package tracker pulls wallet history from the chain, stores what is new,
// and runs alert rules over it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/metrics"
	natspkg "github.com/brojonat/solwatch/service/nats"
	"github.com/brojonat/solwatch/service/solana"
)

var (
	// ErrWalletNotFound is returned when syncing an unknown wallet id.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrSyncFailed wraps any fetch failure, timeout or cancellation that
	// aborted a sync. Retrying the whole sync is safe.
	ErrSyncFailed = errors.New("sync failed")
)

const (
	DefaultPageSize     = 100
	DefaultFetchTimeout = 60 * time.Second
)

// ChainSource fetches a wallet's recent raw transactions.
type ChainSource interface {
	FetchRawTransactions(ctx context.Context, address string, limit int) ([]*solana.RawTransaction, error)
}

// TransactionStore persists classified transactions.
type TransactionStore interface {
	InsertTransactionIfAbsent(ctx context.Context, walletID string, tx *solana.ClassifiedTransaction) (bool, error)
	UpdateWalletLastSync(ctx context.Context, walletID string, at time.Time) error
}

// TransactionPublisher fans newly stored transactions out to subscribers.
type TransactionPublisher interface {
	PublishTransactionBatch(ctx context.Context, events []*natspkg.TransactionEvent) error
}

// IngestResult summarizes one ingest pass.
type IngestResult struct {
	// New holds the transactions stored by this pass, in chain order.
	New []*solana.ClassifiedTransaction
	// Fetched counts the classifiable transactions returned by the chain.
	Fetched int
}

// Ingestor stores a wallet's not yet seen transactions.
type Ingestor struct {
	chain     ChainSource
	store     TransactionStore
	publisher TransactionPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	pageSize     int
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewIngestor creates an Ingestor. publisher and m may be nil.
func NewIngestor(chain ChainSource, store TransactionStore, publisher TransactionPublisher, m *metrics.Metrics, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		chain:        chain,
		store:        store,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		pageSize:     DefaultPageSize,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
}

// WithPageSize sets how many recent transactions each pass asks for.
func (i *Ingestor) WithPageSize(n int) *Ingestor {
	if n > 0 {
		i.pageSize = n
	}
	return i
}

// WithFetchTimeout bounds the chain fetch.
func (i *Ingestor) WithFetchTimeout(d time.Duration) *Ingestor {
	if d > 0 {
		i.fetchTimeout = d
	}
	return i
}

// Ingest fetches, classifies and stores the wallet's recent transactions.
//
// A fetch error or timeout returns ErrSyncFailed with nothing stored and
// lastSync untouched. Cancellation is only observed between transactions:
// the prefix stored so far is returned together with ErrSyncFailed so the
// caller can still notify for it.
func (i *Ingestor) Ingest(ctx context.Context, wallet alerts.WalletRef) (*IngestResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, i.fetchTimeout)
	raws, err := i.chain.FetchRawTransactions(fetchCtx, wallet.Address, i.pageSize)
	cancel()
	if err != nil {
		i.logger.ErrorContext(ctx, "failed to fetch transactions",
			"wallet_id", wallet.ID,
			"address", wallet.Address,
			"error", err,
		)
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrSyncFailed, wallet.Address, err)
	}

	classified := make([]*solana.ClassifiedTransaction, 0, len(raws))
	for _, raw := range raws {
		tx, ok := solana.Classify(raw, wallet.Address)
		if !ok {
			i.logger.DebugContext(ctx, "skipping unparsable transaction",
				"signature", raw.Signature,
			)
			continue
		}
		if i.metrics != nil {
			i.metrics.RecordTransactionClassified(string(tx.Category))
		}
		classified = append(classified, tx)
	}

	result := &IngestResult{Fetched: len(classified)}
	skipped := 0
	for _, tx := range classified {
		if err := ctx.Err(); err != nil {
			i.record(wallet, result, skipped)
			i.logger.WarnContext(ctx, "ingest cancelled",
				"wallet_id", wallet.ID,
				"stored", len(result.New),
			)
			i.publish(context.WithoutCancel(ctx), wallet, result.New)
			return result, fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}

		inserted, err := i.store.InsertTransactionIfAbsent(ctx, wallet.ID, tx)
		if err != nil {
			i.logger.ErrorContext(ctx, "failed to store transaction",
				"wallet_id", wallet.ID,
				"signature", tx.Signature,
				"error", err,
			)
			continue
		}
		if !inserted {
			skipped++
			continue
		}
		result.New = append(result.New, tx)
	}

	if err := i.store.UpdateWalletLastSync(ctx, wallet.ID, i.now()); err != nil {
		i.logger.WarnContext(ctx, "failed to update wallet last sync",
			"wallet_id", wallet.ID,
			"error", err,
		)
	}

	i.record(wallet, result, skipped)
	i.publish(ctx, wallet, result.New)

	i.logger.InfoContext(ctx, "ingested wallet transactions",
		"wallet_id", wallet.ID,
		"fetched", result.Fetched,
		"new", len(result.New),
		"skipped", skipped,
	)
	return result, nil
}

func (i *Ingestor) record(wallet alerts.WalletRef, result *IngestResult, skipped int) {
	if i.metrics == nil {
		return
	}
	i.metrics.RecordTransactionsInserted(wallet.Address, len(result.New))
	i.metrics.RecordTransactionsSkipped(wallet.Address, "already_exists", skipped)
}

// publish is best effort; stored transactions stay stored.
func (i *Ingestor) publish(ctx context.Context, wallet alerts.WalletRef, txs []*solana.ClassifiedTransaction) {
	if i.publisher == nil || len(txs) == 0 {
		return
	}
	events := make([]*natspkg.TransactionEvent, 0, len(txs))
	for _, tx := range txs {
		events = append(events, natspkg.FromClassified(wallet.ID, wallet.Address, tx))
	}
	if err := i.publisher.PublishTransactionBatch(ctx, events); err != nil {
		i.logger.ErrorContext(ctx, "failed to publish transactions to NATS",
			"wallet_id", wallet.ID,
			"count", len(events),
			"error", err,
		)
	}
}
