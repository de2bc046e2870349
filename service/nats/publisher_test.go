package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "txns.abc", TransactionSubject("abc"))
	assert.Equal(t, "notifications.w1", NotificationSubject("w1"))
	assert.Equal(t, "notifications.global", NotificationSubject(""))
}

func TestFromClassified(t *testing.T) {
	amount := "1.5"
	bt := time.Unix(1700000000, 0).UTC()
	tx := &solana.ClassifiedTransaction{
		Signature: "sig",
		Category:  solana.CategorySOLTransfer,
		From:      "from",
		Amount:    &amount,
		Status:    solana.StatusSuccess,
		BlockTime: &bt,
		Slot:      42,
	}

	event := FromClassified("w1", "addr", tx)
	assert.Equal(t, "sig", event.Signature)
	assert.Equal(t, uint64(42), event.Slot)
	assert.Equal(t, "w1", event.WalletID)
	assert.Equal(t, "addr", event.WalletAddress)
	assert.Equal(t, "sol_transfer", event.Type)
	assert.Equal(t, "success", event.Status)
	assert.Equal(t, &amount, event.Amount)
	assert.Equal(t, &bt, event.BlockTime)
	assert.False(t, event.PublishedAt.IsZero())
}

func TestDelivery(t *testing.T) {
	pub := NewMockPublisher()
	d := NewDelivery(pub)
	assert.Equal(t, "nats", d.Name())

	wallet := alerts.WalletRef{ID: "w1", Address: "addr", Name: "Main"}
	n := &alerts.Notification{
		ID:      "n1",
		RuleID:  "r1",
		Title:   "Wallet Activity",
		Message: "New sol transfer detected",
		Data:    alerts.Payload{TransactionSignature: "sig", TransactionType: "sol_transfer"},
	}

	require.NoError(t, d.Deliver(context.Background(), wallet, n))

	events := pub.GetPublishedNotifications()
	require.Len(t, events, 1)
	assert.Equal(t, "n1", events[0].ID)
	assert.Equal(t, "r1", events[0].RuleID)
	assert.Equal(t, "w1", events[0].WalletID)
	assert.Equal(t, "sig", events[0].Signature)

	pub.SetPublishError(errors.New("down"))
	assert.Error(t, d.Deliver(context.Background(), wallet, n))
}
