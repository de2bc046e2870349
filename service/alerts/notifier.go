package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/solana"
)

// Notification records that a rule fired for a transaction.
type Notification struct {
	ID        string    `json:"id"`
	RuleID    string    `json:"alertId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      Payload   `json:"data"`
	Read      bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Payload carries enough of the triggering transaction to display the
// notification without another lookup.
type Payload struct {
	WalletID             string  `json:"walletId,omitempty"`
	TransactionSignature string  `json:"transactionSignature"`
	TransactionType      string  `json:"transactionType"`
	Amount               *string `json:"amount,omitempty"`
	TokenSymbol          *string `json:"tokenSymbol,omitempty"`
}

// WalletRef is the part of a wallet the notifier needs.
type WalletRef struct {
	ID      string
	Address string
	Name    string
}

// RuleStore lists the rules that apply to a wallet: active rules scoped to
// it plus active global rules.
type RuleStore interface {
	ListActiveRulesForWallet(ctx context.Context, walletID string) ([]*Rule, error)
}

// NotificationStore persists notifications and returns the stored record.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) (*Notification, error)
}

// Store is the storage the Notifier depends on.
type Store interface {
	RuleStore
	NotificationStore
}

// Delivery hands a stored notification to an outbound channel.
type Delivery interface {
	Name() string
	Deliver(ctx context.Context, wallet WalletRef, n *Notification) error
}

// Notifier evaluates rules against newly stored transactions.
type Notifier struct {
	store           Store
	deliveries      []Delivery
	deliveryTimeout time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// DefaultDeliveryTimeout bounds each push to a delivery channel.
const DefaultDeliveryTimeout = 10 * time.Second

// NewNotifier creates a Notifier. Deliveries are optional.
func NewNotifier(store Store, m *metrics.Metrics, logger *slog.Logger, deliveries ...Delivery) *Notifier {
	return &Notifier{
		store:           store,
		deliveries:      deliveries,
		deliveryTimeout: DefaultDeliveryTimeout,
		metrics:         m,
		logger:          logger,
	}
}

// WithDeliveryTimeout sets how long a single delivery may take.
func (n *Notifier) WithDeliveryTimeout(d time.Duration) *Notifier {
	if d > 0 {
		n.deliveryTimeout = d
	}
	return n
}

// Notify creates one notification per matching (rule, transaction) pair and
// returns those it stored. It must only be given transactions that were
// just inserted; it does not check for earlier notifications itself.
//
// Failures are per pair: a pair that cannot be stored is logged and
// skipped, and the remaining pairs are still evaluated.
func (n *Notifier) Notify(ctx context.Context, wallet WalletRef, txs []*solana.ClassifiedTransaction) []*Notification {
	if len(txs) == 0 {
		return nil
	}

	rules, err := n.store.ListActiveRulesForWallet(ctx, wallet.ID)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to load alert rules",
			"wallet_id", wallet.ID,
			"error", err,
		)
		return nil
	}

	var created []*Notification
	for _, rule := range rules {
		if rule == nil || !rule.Active {
			continue
		}
		// rules scoped to another wallet never fire here
		if rule.WalletID != nil && *rule.WalletID != wallet.ID {
			continue
		}

		for _, tx := range txs {
			if !Matches(*rule, tx) {
				continue
			}

			title, message := Render(*rule, wallet, tx)
			stored, err := n.store.CreateNotification(ctx, &Notification{
				RuleID:  rule.ID,
				Title:   title,
				Message: message,
				Data: Payload{
					WalletID:             wallet.ID,
					TransactionSignature: tx.Signature,
					TransactionType:      string(tx.Category),
					Amount:               tx.Amount,
					TokenSymbol:          tx.TokenSymbol,
				},
			})
			if err != nil {
				n.logger.ErrorContext(ctx, "failed to create notification",
					"rule_id", rule.ID,
					"signature", tx.Signature,
					"error", err,
				)
				if n.metrics != nil {
					n.metrics.RecordNotification(string(rule.Type()), "error")
				}
				continue
			}
			if n.metrics != nil {
				n.metrics.RecordNotification(string(rule.Type()), "created")
			}

			n.deliver(ctx, wallet, stored)
			created = append(created, stored)
		}
	}

	if len(created) > 0 {
		n.logger.InfoContext(ctx, "created notifications",
			"wallet_id", wallet.ID,
			"count", len(created),
		)
	}
	return created
}

func (n *Notifier) deliver(ctx context.Context, wallet WalletRef, notif *Notification) {
	for _, d := range n.deliveries {
		dctx, cancel := context.WithTimeout(ctx, n.deliveryTimeout)
		err := safeDeliver(dctx, d, wallet, notif)
		cancel()
		status := "success"
		if err != nil {
			status = "error"
			n.logger.WarnContext(ctx, "notification delivery failed",
				"channel", d.Name(),
				"notification_id", notif.ID,
				"error", err,
			)
		}
		if n.metrics != nil {
			n.metrics.RecordDelivery(d.Name(), status)
		}
	}
}

func safeDeliver(ctx context.Context, d Delivery, wallet WalletRef, notif *Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()
	return d.Deliver(ctx, wallet, notif)
}

// Render builds the title and message for a rule firing on tx.
func Render(rule Rule, wallet WalletRef, tx *solana.ClassifiedTransaction) (string, string) {
	var title, message string

	switch rule.Type() {
	case TypeAmountThreshold:
		sym := deref(tx.TokenSymbol, "SOL")
		title = "Large " + sym + " Transfer"
		message = deref(tx.Amount, "") + " " + sym + " transferred"

	case TypeTokenTransfer:
		title = "Token Transfer Detected"
		message = deref(tx.Amount, "Unknown amount") + " " + deref(tx.TokenSymbol, "tokens") + " transferred"

	case TypeProgramInteraction:
		title = "Program Interaction"
		message = "Interaction with program: " + truncate(deref(tx.ProgramID, ""), 8) + "..."

	case TypeAnyActivity:
		title = "Wallet Activity"
		message = "New " + strings.Replace(string(tx.Category), "_", " ", 1) + " detected"
	}

	if rule.WalletID != nil {
		label := wallet.Name
		if label == "" {
			label = truncate(wallet.Address, 8) + "..."
		}
		message += " for wallet " + label
	}
	return title, message
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
