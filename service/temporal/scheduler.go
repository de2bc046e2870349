package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solwatch/service/db"
)

// Scheduler manages one sync schedule per wallet.
type Scheduler interface {
	// UpsertWalletSchedule creates the wallet's schedule or updates its
	// interval.
	UpsertWalletSchedule(ctx context.Context, walletID string, interval time.Duration) error

	// DeleteWalletSchedule stops the wallet from being synced.
	DeleteWalletSchedule(ctx context.Context, walletID string) error
}

// ScheduleIDPrefix prefixes every wallet schedule ID.
const ScheduleIDPrefix = "sync-wallet-"

// ScheduleID returns the Temporal schedule ID for a wallet.
func ScheduleID(walletID string) string {
	return ScheduleIDPrefix + walletID
}

// ReconcileSchedules upserts a schedule for every active wallet and deletes
// the schedules of inactive ones. All failures are reported together.
func ReconcileSchedules(ctx context.Context, s Scheduler, wallets []*db.Wallet, intervalFor func(priority int) time.Duration) error {
	var errs []error
	for _, w := range wallets {
		var err error
		if w.Active {
			err = s.UpsertWalletSchedule(ctx, w.ID, intervalFor(w.Priority))
		} else {
			err = s.DeleteWalletSchedule(ctx, w.ID)
			if errors.Is(err, ErrScheduleNotFound) {
				err = nil
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("wallet %s: %w", w.ID, err))
		}
	}
	return errors.Join(errs...)
}

// ErrScheduleNotFound is returned when deleting a schedule that does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")
