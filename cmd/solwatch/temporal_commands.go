package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/temporal"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
)

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-schedules",
		Usage:   "List wallet sync schedules",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include schedules that don't belong to solwatch",
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ids, err := listScheduleIDs(c.Context, tc.SDKClient(), c.Bool("all"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(ids)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEDULE ID\tWALLET ID")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", id, strings.TrimPrefix(id, temporal.ScheduleIDPrefix))
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d schedules\n", len(ids))
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe-schedule",
		Usage:     "Describe a wallet's sync schedule",
		Aliases:   []string{"desc"},
		ArgsUsage: "<wallet-id|schedule-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet or schedule ID")
			}

			scheduleID := normalizeScheduleID(c.Args().First())
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, scheduleID)
			desc, err := handle.Describe(c.Context)
			if err != nil {
				return fmt.Errorf("failed to describe schedule: %w", err)
			}

			fmt.Printf("Schedule ID:    %s\n", scheduleID)
			fmt.Printf("State Note:     %s\n", desc.Schedule.State.Note)
			fmt.Printf("Paused:         %v\n", desc.Schedule.State.Paused)

			if wa, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
				fmt.Printf("\nWorkflow:\n")
				fmt.Printf("  Workflow:     %v\n", wa.Workflow)
				fmt.Printf("  Task Queue:   %s\n", wa.TaskQueue)
				fmt.Printf("  Args:         %v\n", wa.Args)
			}

			if desc.Schedule.Spec != nil && len(desc.Schedule.Spec.Intervals) > 0 {
				fmt.Printf("\nSchedule Spec:\n")
				for i, interval := range desc.Schedule.Spec.Intervals {
					fmt.Printf("  Interval %d:   Every %v\n", i+1, interval.Every)
				}
			}

			fmt.Printf("\nRecent Actions: %d\n", len(desc.Info.RecentActions))
			if n := len(desc.Info.RecentActions); n > 0 {
				fmt.Printf("Last Action:    %s\n", desc.Info.RecentActions[n-1].ActualTime.Format(time.RFC3339))
			}
			if len(desc.Info.NextActionTimes) > 0 {
				fmt.Printf("Next Action:    %s\n", desc.Info.NextActionTimes[0].Format(time.RFC3339))
			}
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-schedule",
		Usage:     "Delete a sync schedule (use for orphaned schedules)",
		ArgsUsage: "<wallet-id|schedule-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet or schedule ID")
			}

			scheduleID := normalizeScheduleID(c.Args().First())

			if !c.Bool("force") {
				fmt.Printf("Are you sure you want to delete schedule %s? (yes/no): ", scheduleID)
				var response string
				fmt.Scanln(&response)
				if response != "yes" {
					fmt.Println("Cancelled")
					return nil
				}
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			walletID := strings.TrimPrefix(scheduleID, temporal.ScheduleIDPrefix)
			if err := tc.DeleteWalletSchedule(c.Context, walletID); err != nil {
				return err
			}

			fmt.Printf("✓ Schedule deleted: %s\n", scheduleID)
			return nil
		},
	}
}

func triggerScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger",
		Usage:     "Run a wallet's scheduled sync workflow now",
		ArgsUsage: "<wallet-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet ID")
			}

			walletID := strings.TrimPrefix(c.Args().First(), temporal.ScheduleIDPrefix)
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.TriggerWalletSync(c.Context, walletID); err != nil {
				return err
			}
			fmt.Printf("✓ Sync triggered: %s\n", temporal.ScheduleID(walletID))
			return nil
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Check for inconsistencies between the wallets table and Temporal schedules",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "fix",
				Usage: "Upsert schedules for active wallets, delete the rest and remove orphans",
			},
			&cli.DurationFlag{
				Name:    "default-interval",
				Usage:   "Sync interval for priority 1 (priority 0 gets twice this)",
				EnvVars: []string{"DEFAULT_SYNC_INTERVAL"},
				Value:   5 * time.Minute,
			},
			&cli.DurationFlag{
				Name:    "min-interval",
				Usage:   "Sync interval for priority 2",
				EnvVars: []string{"MIN_SYNC_INTERVAL"},
				Value:   time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx := c.Context
			wallets, err := store.ListWallets(ctx, db.ListWalletsParams{IncludeInactive: true})
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}
			scheduleIDs, err := listScheduleIDs(ctx, tc.SDKClient(), false)
			if err != nil {
				return err
			}

			report := diffSchedules(wallets, scheduleIDs)

			fmt.Printf("Wallets:   %d\n", len(wallets))
			fmt.Printf("Schedules: %d\n\n", len(scheduleIDs))
			for _, w := range report.Missing {
				fmt.Printf("✗ missing schedule for active wallet %s (%s)\n", w.ID, w.Address)
			}
			for _, w := range report.Stale {
				fmt.Printf("✗ inactive wallet %s still has a schedule\n", w.ID)
			}
			for _, id := range report.Orphaned {
				fmt.Printf("✗ orphaned schedule %s has no wallet\n", id)
			}
			if report.Clean() {
				fmt.Println("✓ Database and Temporal are in sync")
				return nil
			}
			if !c.Bool("fix") {
				fmt.Println("\nRun with --fix to repair")
				return nil
			}

			cfg := &config.Config{
				DefaultSyncInterval: c.Duration("default-interval"),
				MinSyncInterval:     c.Duration("min-interval"),
			}
			var errs []error
			if err := temporal.ReconcileSchedules(ctx, tc, wallets, cfg.IntervalForPriority); err != nil {
				errs = append(errs, err)
			}
			for _, id := range report.Orphaned {
				err := tc.DeleteWalletSchedule(ctx, strings.TrimPrefix(id, temporal.ScheduleIDPrefix))
				if err != nil && !errors.Is(err, temporal.ErrScheduleNotFound) {
					errs = append(errs, err)
				}
			}
			if err := errors.Join(errs...); err != nil {
				return fmt.Errorf("reconcile incomplete: %w", err)
			}

			fmt.Println("\n✓ Reconciled")
			return nil
		},
	}
}

// scheduleReport lists the ways the wallets table and the schedules
// disagree.
type scheduleReport struct {
	Missing  []*db.Wallet
	Stale    []*db.Wallet
	Orphaned []string
}

func (r scheduleReport) Clean() bool {
	return len(r.Missing) == 0 && len(r.Stale) == 0 && len(r.Orphaned) == 0
}

func diffSchedules(wallets []*db.Wallet, scheduleIDs []string) scheduleReport {
	existing := make(map[string]bool, len(scheduleIDs))
	for _, id := range scheduleIDs {
		existing[id] = true
	}

	var r scheduleReport
	known := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		id := temporal.ScheduleID(w.ID)
		known[id] = true
		switch {
		case w.Active && !existing[id]:
			r.Missing = append(r.Missing, w)
		case !w.Active && existing[id]:
			r.Stale = append(r.Stale, w)
		}
	}
	for _, id := range scheduleIDs {
		if !known[id] {
			r.Orphaned = append(r.Orphaned, id)
		}
	}
	sort.Strings(r.Orphaned)
	return r
}

func normalizeScheduleID(s string) string {
	if strings.HasPrefix(s, temporal.ScheduleIDPrefix) {
		return s
	}
	return temporal.ScheduleID(s)
}

func listScheduleIDs(ctx context.Context, tc client.Client, all bool) ([]string, error) {
	iter, err := tc.ScheduleClient().List(ctx, client.ScheduleListOptions{PageSize: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	var ids []string
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate schedules: %w", err)
		}
		if all || strings.HasPrefix(entry.ID, temporal.ScheduleIDPrefix) {
			ids = append(ids, entry.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("task-queue"),
		cliLogger(c),
	)
}
