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

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:    "wallets",
		Aliases: []string{"wallet", "w"},
		Usage:   "Manage tracked wallets via the HTTP API",
		Subcommands: []*cli.Command{
			walletAddCommand(),
			walletGetCommand(),
			walletListCommand(),
			walletUpdateCommand(),
			walletRemoveCommand(),
			walletSyncCommand(),
		},
	}
}

func walletAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Start tracking a wallet",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Free-form label",
			},
			&cli.IntFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Usage:   "Sync priority: 0 (low), 1 (normal), 2 (high)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			req := client.CreateWalletRequest{Address: c.Args().First()}
			if c.IsSet("name") {
				req.Name = stringPtr(c.String("name"))
			}
			if c.IsSet("tag") {
				req.Tag = stringPtr(c.String("tag"))
			}
			if c.IsSet("priority") {
				p := c.Int("priority")
				req.Priority = &p
			}

			wallet, err := apiClient(c).CreateWallet(c.Context, req)
			if err != nil {
				return fmt.Errorf("failed to add wallet: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(wallet)
			}
			fmt.Printf("✓ Wallet added: %s\n", wallet.Address)
			fmt.Printf("  ID:       %s\n", wallet.ID)
			fmt.Printf("  Priority: %d\n", wallet.Priority)
			return nil
		},
	}
}

func walletGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a wallet with its transaction and alert counts",
		ArgsUsage: "WALLET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet ID")
			}

			wallet, err := apiClient(c).GetWallet(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get wallet: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(wallet)
			}
			printWallet(wallet)
			return nil
		},
	}
}

func walletListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List tracked wallets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include inactive wallets",
			},
		},
		Action: func(c *cli.Context) error {
			wallets, err := apiClient(c).ListWallets(c.Context, c.Bool("all"))
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(wallets)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tNAME\tPRIORITY\tACTIVE\tTXNS\tLAST SYNC")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%d\t%s\n",
					wallet.ID,
					wallet.Address,
					optional(wallet.Name),
					wallet.Priority,
					wallet.Active,
					wallet.TransactionCount,
					formatTime(wallet.LastSync),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func walletUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change a wallet's name, tag, priority or active flag",
		ArgsUsage: "WALLET_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Display name"},
			&cli.StringFlag{Name: "tag", Usage: "Free-form label"},
			&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Sync priority (0-2)"},
			&cli.BoolFlag{Name: "active", Usage: "Resume or pause syncing (--active=false to pause)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet ID")
			}

			var req client.UpdateWalletRequest
			if c.IsSet("name") {
				req.Name = stringPtr(c.String("name"))
			}
			if c.IsSet("tag") {
				req.Tag = stringPtr(c.String("tag"))
			}
			if c.IsSet("priority") {
				p := c.Int("priority")
				req.Priority = &p
			}
			if c.IsSet("active") {
				a := c.Bool("active")
				req.Active = &a
			}
			if req == (client.UpdateWalletRequest{}) {
				return fmt.Errorf("nothing to update: set at least one of --name, --tag, --priority, --active")
			}

			wallet, err := apiClient(c).UpdateWallet(c.Context, c.Args().First(), req)
			if err != nil {
				return fmt.Errorf("failed to update wallet: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(wallet)
			}
			fmt.Printf("✓ Wallet updated: %s\n", wallet.ID)
			printWallet(wallet)
			return nil
		},
	}
}

func walletRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove"},
		Usage:     "Stop tracking a wallet and delete its transactions",
		ArgsUsage: "WALLET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet ID")
			}

			id := c.Args().First()
			if err := apiClient(c).DeleteWallet(c.Context, id); err != nil {
				return fmt.Errorf("failed to remove wallet: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(map[string]string{"id": id, "status": "deleted"})
			}
			fmt.Printf("✓ Wallet removed: %s\n", id)
			return nil
		},
	}
}

func walletSyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Sync one wallet now, or every active wallet with --all",
		ArgsUsage: "[WALLET_ID]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Sync every active wallet",
			},
		},
		Action: func(c *cli.Context) error {
			api := apiClient(c)

			if c.Bool("all") {
				if c.NArg() != 0 {
					return fmt.Errorf("--all takes no arguments")
				}
				res, err := api.SyncAll(c.Context)
				if err != nil {
					return fmt.Errorf("failed to sync wallets: %w", err)
				}
				if c.Bool("json") {
					return outputJSON(res)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "WALLET ID\tNEW\tFETCHED\tNOTIFICATIONS")
				for _, r := range res.Results {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.WalletID, r.NewTransactionCount, r.TotalFetched, r.Notifications)
				}
				w.Flush()
				for _, e := range res.Errors {
					fmt.Fprintf(os.Stderr, "✗ %s: %s\n", e.WalletID, e.Error)
				}
				fmt.Fprintf(os.Stderr, "\nSynced: %d wallets, %d failed\n", len(res.Results), len(res.Errors))
				return nil
			}

			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet ID (or use --all)")
			}
			res, err := api.SyncWallet(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to sync wallet: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(res)
			}
			fmt.Printf("✓ Wallet synced: %s\n", res.WalletID)
			fmt.Printf("  New transactions: %d (of %d fetched)\n", res.NewTransactionCount, res.TotalFetched)
			fmt.Printf("  Notifications:    %d\n", res.Notifications)
			return nil
		},
	}
}

func printWallet(w *client.Wallet) {
	fmt.Printf("ID:           %s\n", w.ID)
	fmt.Printf("Address:      %s\n", w.Address)
	fmt.Printf("Name:         %s\n", optional(w.Name))
	fmt.Printf("Tag:          %s\n", optional(w.Tag))
	fmt.Printf("Priority:     %d\n", w.Priority)
	fmt.Printf("Active:       %v\n", w.Active)
	fmt.Printf("Last Sync:    %s\n", formatTime(w.LastSync))
	fmt.Printf("Transactions: %d\n", w.TransactionCount)
	fmt.Printf("Alerts:       %d\n", w.AlertCount)
	fmt.Printf("Created:      %s\n", w.CreatedAt.Format(time.RFC3339))
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optional(s *string) string {
	if s != nil && *s != "" {
		return *s
	}
	return "-"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func stringPtr(s string) *string { return &s }
