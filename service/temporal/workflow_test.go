package temporal

import (
	"errors"
	"testing"

	"github.com/brojonat/solwatch/service/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func TestSyncWalletWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		mockActivity   func(*testsuite.MockCallWrapper)
		expectedError  bool
		validateResult func(*testing.T, *SyncWalletResult)
	}{
		{
			name: "successful sync",
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(&tracker.SyncResult{
					WalletID:            "w1",
					NewTransactionCount: 3,
					TotalFetched:        10,
					Notifications:       2,
				}, nil)
			},
			validateResult: func(t *testing.T, result *SyncWalletResult) {
				assert.Equal(t, "w1", result.WalletID)
				assert.Equal(t, 3, result.NewTransactionCount)
				assert.Equal(t, 10, result.TotalFetched)
				assert.Equal(t, 2, result.Notifications)
				assert.False(t, result.SyncTime.IsZero())
				assert.Nil(t, result.Error)
			},
		},
		{
			name: "nothing new",
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(&tracker.SyncResult{WalletID: "w1", TotalFetched: 10}, nil)
			},
			validateResult: func(t *testing.T, result *SyncWalletResult) {
				assert.Zero(t, result.NewTransactionCount)
				assert.Zero(t, result.Notifications)
			},
		},
		{
			name: "sync fails",
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(nil, errors.New("sync failed: rpc down"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			activities := &Activities{}
			env.RegisterActivity(activities.SyncWallet)
			tt.mockActivity(env.OnActivity(activities.SyncWallet, mock.Anything, SyncWalletInput{WalletID: "w1"}))

			env.ExecuteWorkflow(SyncWalletWorkflow, SyncWalletInput{WalletID: "w1"})

			require.True(t, env.IsWorkflowCompleted())
			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result SyncWalletResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
		})
	}
}

func TestSyncWalletWorkflow_RetriesTransientFailures(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SyncWallet)

	callCount := 0
	env.OnActivity(activities.SyncWallet, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(&tracker.SyncResult{WalletID: "w1", NewTransactionCount: 1}, nil)

	env.ExecuteWorkflow(SyncWalletWorkflow, SyncWalletInput{WalletID: "w1"})

	require.NoError(t, env.GetWorkflowError())
	var result SyncWalletResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.NewTransactionCount)
	assert.Equal(t, 3, callCount)
}

func TestSyncWalletWorkflow_WalletNotFoundIsNotRetried(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SyncWallet)

	callCount := 0
	env.OnActivity(activities.SyncWallet, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
	}).Return(nil, temporalsdk.NewNonRetryableApplicationError("wallet not found", ErrTypeWalletNotFound, nil))

	env.ExecuteWorkflow(SyncWalletWorkflow, SyncWalletInput{WalletID: "gone"})

	require.Error(t, env.GetWorkflowError())
	assert.Equal(t, 1, callCount)
}
