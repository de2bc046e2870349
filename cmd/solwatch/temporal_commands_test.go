package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSchedules(t *testing.T) {
	wallets := []*db.Wallet{
		{ID: "active-scheduled", Active: true},
		{ID: "active-missing", Active: true},
		{ID: "inactive-scheduled", Active: false},
		{ID: "inactive-clean", Active: false},
	}
	scheduleIDs := []string{
		temporal.ScheduleID("active-scheduled"),
		temporal.ScheduleID("inactive-scheduled"),
		temporal.ScheduleID("deleted-wallet"),
	}

	report := diffSchedules(wallets, scheduleIDs)

	require.Len(t, report.Missing, 1)
	assert.Equal(t, "active-missing", report.Missing[0].ID)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, "inactive-scheduled", report.Stale[0].ID)
	assert.Equal(t, []string{"sync-wallet-deleted-wallet"}, report.Orphaned)
	assert.False(t, report.Clean())
}

func TestDiffSchedules_Clean(t *testing.T) {
	wallets := []*db.Wallet{
		{ID: "w1", Active: true},
		{ID: "w2", Active: false},
	}
	report := diffSchedules(wallets, []string{temporal.ScheduleID("w1")})
	assert.True(t, report.Clean())
}

func TestNormalizeScheduleID(t *testing.T) {
	assert.Equal(t, "sync-wallet-w1", normalizeScheduleID("w1"))
	assert.Equal(t, "sync-wallet-w1", normalizeScheduleID("sync-wallet-w1"))
}

func TestTemporalCommands_ArgValidation(t *testing.T) {
	for _, args := range [][]string{
		{"temporal", "describe-schedule"},
		{"temporal", "delete-schedule", "--force"},
		{"temporal", "trigger"},
	} {
		_, err := runApp(t, "http://unused", args...)
		require.Error(t, err, "%v", args)
		assert.Contains(t, err.Error(), "requires exactly one argument")
	}
}

func TestTriggerScheduleCommand(t *testing.T) {
	if os.Getenv("RUN_TEMPORAL_TESTS") == "" {
		t.Skip("Skipping Temporal integration test (set RUN_TEMPORAL_TESTS=1 to enable)")
	}
	host := os.Getenv("TEST_TEMPORAL_HOST")
	if host == "" {
		host = "localhost:7233"
	}

	tc, err := temporal.NewClient(host, "default", "solwatch-sync-test", nil)
	require.NoError(t, err)
	defer tc.Close()

	walletID := "cli-trigger-test"
	require.NoError(t, tc.UpsertWalletSchedule(context.Background(), walletID, time.Hour))
	t.Cleanup(func() { tc.DeleteWalletSchedule(context.Background(), walletID) })

	out, err := runApp(t, "http://unused", "--temporal-host", host, "--task-queue", "solwatch-sync-test", "temporal", "trigger", walletID)
	require.NoError(t, err)
	assert.Contains(t, out, "Sync triggered: sync-wallet-cli-trigger-test")

	out, err = runApp(t, "http://unused", "--temporal-host", host, "temporal", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "sync-wallet-cli-trigger-test")
}
