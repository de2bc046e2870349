package nats

import (
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/solana"
)

// TransactionEvent is published to "txns.{wallet_address}" for every newly
// stored transaction.
type TransactionEvent struct {
	Signature     string  `json:"signature"`
	Slot          uint64  `json:"slot"`
	WalletID      string  `json:"wallet_id"`
	WalletAddress string  `json:"wallet_address"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	FromAddress   string  `json:"from_address"`
	ToAddress     *string `json:"to_address,omitempty"`
	Amount        *string `json:"amount,omitempty"`
	TokenMint     *string `json:"token_mint,omitempty"`
	TokenSymbol   *string `json:"token_symbol,omitempty"`
	ProgramID     *string `json:"program_id,omitempty"`

	BlockTime   *time.Time `json:"block_time,omitempty"`
	PublishedAt time.Time  `json:"published_at"`
}

// FromClassified builds a TransactionEvent for tx stored under the given wallet.
func FromClassified(walletID, walletAddress string, tx *solana.ClassifiedTransaction) *TransactionEvent {
	return &TransactionEvent{
		Signature:     tx.Signature,
		Slot:          tx.Slot,
		WalletID:      walletID,
		WalletAddress: walletAddress,
		Type:          string(tx.Category),
		Status:        string(tx.Status),
		FromAddress:   tx.From,
		ToAddress:     tx.To,
		Amount:        tx.Amount,
		TokenMint:     tx.TokenMint,
		TokenSymbol:   tx.TokenSymbol,
		ProgramID:     tx.ProgramID,
		BlockTime:     tx.BlockTime,
		PublishedAt:   time.Now().UTC(),
	}
}

// NotificationEvent is published to "notifications.{wallet_id}" when a rule
// fires.
type NotificationEvent struct {
	ID            string    `json:"id"`
	RuleID        string    `json:"alert_id"`
	WalletID      string    `json:"wallet_id"`
	WalletAddress string    `json:"wallet_address"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Signature     string    `json:"transaction_signature"`
	Type          string    `json:"transaction_type"`
	Amount        *string   `json:"amount,omitempty"`
	TokenSymbol   *string   `json:"token_symbol,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	PublishedAt   time.Time `json:"published_at"`
}

// FromNotification builds a NotificationEvent for n raised on wallet.
func FromNotification(wallet alerts.WalletRef, n *alerts.Notification) *NotificationEvent {
	return &NotificationEvent{
		ID:            n.ID,
		RuleID:        n.RuleID,
		WalletID:      wallet.ID,
		WalletAddress: wallet.Address,
		Title:         n.Title,
		Message:       n.Message,
		Signature:     n.Data.TransactionSignature,
		Type:          n.Data.TransactionType,
		Amount:        n.Data.Amount,
		TokenSymbol:   n.Data.TokenSymbol,
		CreatedAt:     n.CreatedAt,
		PublishedAt:   time.Now().UTC(),
	}
}
