// Package telegram delivers alert notifications to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender is the part of *bot.Bot used for delivery.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Delivery sends each notification as a message to one chat.
type Delivery struct {
	sender MessageSender
	chatID string
	logger *slog.Logger
}

// New connects a bot with token and returns a Delivery for chatID.
func New(token, chatID string, logger *slog.Logger) (*Delivery, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewWithSender(b, chatID, logger), nil
}

// NewWithSender returns a Delivery using an existing sender.
func NewWithSender(sender MessageSender, chatID string, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{sender: sender, chatID: chatID, logger: logger}
}

func (d *Delivery) Name() string { return "telegram" }

// Deliver sends the notification title and message.
func (d *Delivery) Deliver(ctx context.Context, wallet alerts.WalletRef, n *alerts.Notification) error {
	_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: d.chatID,
		Text:   Format(n),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	d.logger.DebugContext(ctx, "sent telegram notification",
		"notification_id", n.ID,
		"wallet_id", wallet.ID,
	)
	return nil
}

// Format renders n as message text.
func Format(n *alerts.Notification) string {
	text := n.Title + "\n" + n.Message
	if sig := n.Data.TransactionSignature; sig != "" {
		text += "\nhttps://solscan.io/tx/" + sig
	}
	return text
}
