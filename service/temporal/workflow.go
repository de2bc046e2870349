package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/solwatch/service/tracker"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncWalletResult is what a scheduled sync reports.
type SyncWalletResult struct {
	WalletID            string    `json:"wallet_id"`
	SyncTime            time.Time `json:"sync_time"`
	NewTransactionCount int       `json:"new_transaction_count"`
	TotalFetched        int       `json:"total_fetched"`
	Notifications       int       `json:"notifications"`
	Error               *string   `json:"error,omitempty"`
}

// SyncWalletWorkflow is started by the wallet's schedule and runs the
// SyncWallet activity once.
func SyncWalletWorkflow(ctx workflow.Context, input SyncWalletInput) (*SyncWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncWalletWorkflow started", "wallet_id", input.WalletID)

	result := &SyncWalletResult{
		WalletID: input.WalletID,
		SyncTime: workflow.Now(ctx),
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeWalletNotFound},
		},
	})

	var res *tracker.SyncResult
	if err := workflow.ExecuteActivity(ctx, a.SyncWallet, input).Get(ctx, &res); err != nil {
		logger.Error("wallet sync failed", "wallet_id", input.WalletID, "error", err)
		errMsg := err.Error()
		result.Error = &errMsg
		return result, fmt.Errorf("failed to sync wallet %s: %w", input.WalletID, err)
	}

	result.NewTransactionCount = res.NewTransactionCount
	result.TotalFetched = res.TotalFetched
	result.Notifications = res.Notifications

	logger.Info("SyncWalletWorkflow completed",
		"wallet_id", input.WalletID,
		"new", result.NewTransactionCount,
		"fetched", result.TotalFetched,
		"notifications", result.Notifications,
	)
	return result, nil
}
