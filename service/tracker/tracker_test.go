package tracker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

const (
	walletA = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	walletB = "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy"
	jupiter = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockChain struct {
	mock.Mock
}

func (m *MockChain) FetchRawTransactions(ctx context.Context, address string, limit int) ([]*solana.RawTransaction, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*solana.RawTransaction), args.Error(1)
}

func solTransfer(sig string, lamports string) *solana.RawTransaction {
	return &solana.RawTransaction{
		Signature: sig,
		Meta:      &solana.RawMeta{Fee: 5000},
		Slot:      100,
		Instructions: []solana.RawInstruction{{
			Program:   "system",
			ProgramID: solana.SystemProgramID,
			Parsed:    true,
			Type:      "transfer",
			Info: map[string]any{
				"source":      walletA,
				"destination": walletB,
				"lamports":    json.Number(lamports),
			},
		}},
	}
}

func programCall(sig string) *solana.RawTransaction {
	return &solana.RawTransaction{
		Signature:    sig,
		Meta:         &solana.RawMeta{Fee: 5000},
		Slot:         101,
		Instructions: []solana.RawInstruction{{ProgramID: jupiter}},
	}
}

func noMeta(sig string) *solana.RawTransaction {
	return &solana.RawTransaction{Signature: sig}
}

// memStore is an in-memory stand-in for db.Store.
type memStore struct {
	mu            sync.Mutex
	wallets       map[string]*db.Wallet
	txs           map[string]string
	rules         []*alerts.Rule
	notifications []*alerts.Notification
	lastSync      map[string]time.Time

	insertErr   map[string]error
	afterInsert func(sig string)
}

func newMemStore(wallets ...*db.Wallet) *memStore {
	s := &memStore{
		wallets:   map[string]*db.Wallet{},
		txs:       map[string]string{},
		lastSync:  map[string]time.Time{},
		insertErr: map[string]error{},
	}
	for _, w := range wallets {
		s.wallets[w.ID] = w
	}
	return s
}

func (s *memStore) GetWallet(_ context.Context, id string) (*db.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return w, nil
}

func (s *memStore) ListActiveWallets(context.Context) ([]*db.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Wallet
	for _, w := range s.wallets {
		if w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memStore) InsertTransactionIfAbsent(_ context.Context, walletID string, tx *solana.ClassifiedTransaction) (bool, error) {
	s.mu.Lock()
	if err := s.insertErr[tx.Signature]; err != nil {
		s.mu.Unlock()
		return false, err
	}
	_, exists := s.txs[tx.Signature]
	if !exists {
		s.txs[tx.Signature] = walletID
	}
	hook := s.afterInsert
	s.mu.Unlock()

	if hook != nil {
		hook(tx.Signature)
	}
	return !exists, nil
}

func (s *memStore) UpdateWalletLastSync(_ context.Context, walletID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync[walletID] = at
	return nil
}

func (s *memStore) ListActiveRulesForWallet(_ context.Context, walletID string) ([]*alerts.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*alerts.Rule
	for _, r := range s.rules {
		if r.Active && (r.WalletID == nil || *r.WalletID == walletID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CreateNotification(_ context.Context, n *alerts.Notification) (*alerts.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *n
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	s.notifications = append(s.notifications, &stored)
	return &stored, nil
}

func (s *memStore) addRule(r *alerts.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.rules = append(s.rules, r)
}

func (s *memStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *memStore) notificationsFor() []*alerts.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*alerts.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *memStore) lastSyncOf(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSync[id]
	return t, ok
}

func testWallet(id, address string) *db.Wallet {
	name := "wallet " + id
	return &db.Wallet{ID: id, Address: address, Name: &name, Active: true}
}

func ref(w *db.Wallet) alerts.WalletRef {
	return alerts.WalletRef{ID: w.ID, Address: w.Address, Name: w.DisplayName()}
}
