package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solwatch/client"
	"github.com/urfave/cli/v2"
)

func alertCommands() *cli.Command {
	return &cli.Command{
		Name:    "alerts",
		Aliases: []string{"alert"},
		Usage:   "Manage alert rules via the HTTP API",
		Subcommands: []*cli.Command{
			alertListCommand(),
			alertAddCommand(),
			alertUpdateCommand(),
			alertToggleCommand("enable", true),
			alertToggleCommand("disable", false),
			alertRemoveCommand(),
		},
	}
}

func alertListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List alert rules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Only rules scoped to this wallet ID",
			},
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include disabled rules",
			},
		},
		Action: func(c *cli.Context) error {
			rules, err := apiClient(c).ListAlerts(c.Context, c.String("wallet"), c.Bool("all"))
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(rules)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tWALLET\tACTIVE\tCONDITION")
			for _, r := range rules {
				wallet := "(global)"
				if r.WalletID != nil {
					wallet = *r.WalletID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n", r.ID, r.Name, r.Type, wallet, r.Active, string(r.Condition))
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d rules\n", len(rules))
			return nil
		},
	}
}

func alertAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create an alert rule",
		ArgsUsage: "NAME",
		Description: `Create an alert rule. Without --wallet the rule applies to every wallet.

Condition shapes by type:
  amount_threshold      {"operator":"gt|lt|eq","value":"100"}
  token_transfer        {"tokenMint":"<mint>"}
  program_interaction   {"programId":"<program>"}
  any_activity          {}

Example:
  solwatch alerts add "big sol" --type amount_threshold --condition '{"operator":"gt","value":"10"}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "Rule type: amount_threshold, token_transfer, program_interaction, any_activity",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "condition",
				Aliases: []string{"c"},
				Usage:   "Condition as a JSON object",
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Scope the rule to this wallet ID",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: rule name")
			}

			condition := json.RawMessage(c.String("condition"))
			if !json.Valid(condition) {
				return fmt.Errorf("--condition must be valid JSON")
			}

			req := client.CreateAlertRequest{
				Name:      c.Args().First(),
				Type:      c.String("type"),
				Condition: condition,
			}
			if c.IsSet("wallet") {
				req.WalletID = stringPtr(c.String("wallet"))
			}

			rule, err := apiClient(c).CreateAlert(c.Context, req)
			if err != nil {
				return fmt.Errorf("failed to create alert: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(rule)
			}
			fmt.Printf("✓ Alert created: %s\n", rule.ID)
			fmt.Printf("  Type:      %s\n", rule.Type)
			fmt.Printf("  Condition: %s\n", string(rule.Condition))
			return nil
		},
	}
}

func alertUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Rename an alert rule or replace its condition",
		ArgsUsage: "RULE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "New rule name"},
			&cli.StringFlag{Name: "condition", Aliases: []string{"c"}, Usage: "New condition as a JSON object"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: rule ID")
			}

			var req client.UpdateAlertRequest
			if c.IsSet("name") {
				req.Name = stringPtr(c.String("name"))
			}
			if c.IsSet("condition") {
				req.Condition = json.RawMessage(c.String("condition"))
				if !json.Valid(req.Condition) {
					return fmt.Errorf("--condition must be valid JSON")
				}
			}
			if req.Name == nil && req.Condition == nil {
				return fmt.Errorf("nothing to update: set --name or --condition")
			}

			return updateAlert(c, c.Args().First(), req, "✓ Alert updated")
		},
	}
}

func alertToggleCommand(name string, active bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("%s an alert rule", map[bool]string{true: "Enable", false: "Disable"}[active]),
		ArgsUsage: "RULE_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: rule ID")
			}
			return updateAlert(c, c.Args().First(), client.UpdateAlertRequest{Active: &active}, "✓ Alert "+name+"d")
		},
	}
}

func updateAlert(c *cli.Context, id string, req client.UpdateAlertRequest, msg string) error {
	rule, err := apiClient(c).UpdateAlert(c.Context, id, req)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if c.Bool("json") {
		return outputJSON(rule)
	}
	fmt.Printf("%s: %s\n", msg, rule.ID)
	fmt.Printf("  Name:      %s\n", rule.Name)
	fmt.Printf("  Active:    %v\n", rule.Active)
	fmt.Printf("  Condition: %s\n", string(rule.Condition))
	return nil
}

func alertRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove"},
		Usage:     "Delete an alert rule and its notifications",
		ArgsUsage: "RULE_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: rule ID")
			}
			id := c.Args().First()
			if err := apiClient(c).DeleteAlert(c.Context, id); err != nil {
				return fmt.Errorf("failed to delete alert: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(map[string]string{"id": id, "status": "deleted"})
			}
			fmt.Printf("✓ Alert removed: %s\n", id)
			return nil
		},
	}
}

func notificationCommands() *cli.Command {
	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif", "n"},
		Usage:   "Read and acknowledge alert notifications",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List recent notifications, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "unread",
						Aliases: []string{"u"},
						Usage:   "Only unread notifications",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum notifications to show",
						Value:   50,
					},
				},
				Action: func(c *cli.Context) error {
					list, err := apiClient(c).ListNotifications(c.Context, c.Bool("unread"), c.Int("limit"))
					if err != nil {
						return fmt.Errorf("failed to list notifications: %w", err)
					}

					if c.Bool("json") {
						return outputJSON(list)
					}

					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tTIME\tREAD\tTITLE\tSIGNATURE")
					for _, n := range list.Notifications {
						fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
							n.ID,
							n.CreatedAt.Format(time.RFC3339),
							n.Read,
							n.Title,
							n.Data.TransactionSignature,
						)
					}
					w.Flush()

					fmt.Fprintf(os.Stderr, "\nShowing %d notifications, %d unread\n", len(list.Notifications), list.Unread)
					return nil
				},
			},
			{
				Name:      "read",
				Usage:     "Mark notifications as read (or unread with --unread)",
				ArgsUsage: "NOTIFICATION_ID...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "unread",
						Usage: "Mark as unread instead",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return fmt.Errorf("requires at least one notification ID")
					}
					updated, err := apiClient(c).MarkNotifications(c.Context, c.Args().Slice(), !c.Bool("unread"))
					if err != nil {
						return fmt.Errorf("failed to mark notifications: %w", err)
					}
					if c.Bool("json") {
						return outputJSON(map[string]int64{"updated": updated})
					}
					fmt.Printf("✓ Updated %d notifications\n", updated)
					return nil
				},
			},
		},
	}
}
