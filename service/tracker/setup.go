package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/metrics"
	natspkg "github.com/brojonat/solwatch/service/nats"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/brojonat/solwatch/service/telegram"
)

// Pipeline is a Syncer assembled from configuration together with the
// connections it owns.
type Pipeline struct {
	Syncer *Syncer

	closers []func() error
}

// Close releases the pipeline's connections.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewPipeline wires the chain client, optional NATS and Telegram delivery,
// the notifier and the ingestor into a Syncer. m may be nil.
func NewPipeline(cfg *config.Config, store *db.Store, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{}

	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		return nil, err
	}
	label := solana.EndpointLabel(endpoint)
	chain := solana.NewClient(solana.NewRPCClient(endpoint), label, m, logger).
		WithRequestDelay(cfg.SolanaRequestDelay)
	logger.Info("initialized solana RPC client",
		"endpoint", label,
		"total_endpoints", len(cfg.SolanaRPCURLs),
		"request_delay", cfg.SolanaRequestDelay,
	)

	var (
		publisher  TransactionPublisher
		deliveries []alerts.Delivery
	)

	if cfg.NATSURL != "" {
		pub, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		p.closers = append(p.closers, pub.Close)
		publisher = pub
		deliveries = append(deliveries, natspkg.NewDelivery(pub))
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Warn("NATS_URL not set, event publishing disabled")
	}

	if cfg.TelegramEnabled() {
		tg, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create telegram delivery: %w", err)
		}
		deliveries = append(deliveries, tg)
		logger.Info("telegram delivery enabled")
	}

	notifier := alerts.NewNotifier(store, m, logger, deliveries...)
	ingestor := NewIngestor(chain, store, publisher, m, logger).
		WithPageSize(cfg.SyncPageSize).
		WithFetchTimeout(cfg.SyncFetchTimeout)
	p.Syncer = NewSyncer(store, ingestor, notifier, m, logger).
		WithConcurrency(cfg.SyncConcurrency).
		WithSyncTimeout(cfg.SyncFetchTimeout + 20*time.Second)

	return p, nil
}
