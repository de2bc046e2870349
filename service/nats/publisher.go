package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes transaction and notification events.
type Publisher interface {
	// PublishTransaction publishes to "txns.{wallet_address}".
	PublishTransaction(ctx context.Context, event *TransactionEvent) error

	// PublishTransactionBatch publishes each event, logging and skipping
	// individual failures.
	PublishTransactionBatch(ctx context.Context, events []*TransactionEvent) error

	// PublishNotification publishes to "notifications.{wallet_id}".
	PublishNotification(ctx context.Context, event *NotificationEvent) error

	Close() error
}

const (
	// StreamName is the JetStream stream holding all solwatch events.
	StreamName = "SOLWATCH"

	// TransactionSubjects matches per-wallet transaction subjects.
	TransactionSubjects = "txns.*"

	// NotificationSubjects matches per-wallet notification subjects.
	NotificationSubjects = "notifications.*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// TransactionSubject returns the subject for a wallet's transactions.
func TransactionSubject(walletAddress string) string {
	return "txns." + walletAddress
}

// NotificationSubject returns the subject for a wallet's notifications.
func NotificationSubject(walletID string) string {
	if walletID == "" {
		walletID = "global"
	}
	return "notifications." + walletID
}

// JetStreamPublisher publishes events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher connects to NATS and ensures the stream exists. If m is nil,
// no metrics are recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solwatch-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Wallet transactions and alert notifications",
		Subjects:    []string{TransactionSubjects, NotificationSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishTransaction publishes a single transaction event.
func (p *JetStreamPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	subject := TransactionSubject(event.WalletAddress)
	if err := p.publish(ctx, subject, event); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published transaction event",
		"subject", subject,
		"signature", event.Signature,
	)
	return nil
}

// PublishTransactionBatch publishes multiple transaction events.
func (p *JetStreamPublisher) PublishTransactionBatch(ctx context.Context, events []*TransactionEvent) error {
	for _, event := range events {
		if err := p.PublishTransaction(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish transaction in batch",
				"signature", event.Signature,
				"wallet", event.WalletAddress,
				"error", err,
			)
			continue
		}
	}
	return nil
}

// PublishNotification publishes a notification event.
func (p *JetStreamPublisher) PublishNotification(ctx context.Context, event *NotificationEvent) error {
	subject := NotificationSubject(event.WalletID)
	if err := p.publish(ctx, subject, event); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published notification event",
		"subject", subject,
		"notification_id", event.ID,
	)
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

// NotificationPublisher is the part of Publisher used for alert delivery.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, event *NotificationEvent) error
}

// Delivery adapts a publisher to alerts.Delivery.
type Delivery struct {
	pub NotificationPublisher
}

// NewDelivery returns an alerts.Delivery that publishes to NATS.
func NewDelivery(pub NotificationPublisher) *Delivery {
	return &Delivery{pub: pub}
}

func (d *Delivery) Name() string { return "nats" }

func (d *Delivery) Deliver(ctx context.Context, wallet alerts.WalletRef, n *alerts.Notification) error {
	return d.pub.PublishNotification(ctx, FromNotification(wallet, n))
}
