package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/brojonat/solwatch/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func dbWalletsCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallets",
		Usage: "List wallets straight from the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include inactive wallets",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallets, err := store.ListWallets(c.Context, db.ListWalletsParams{IncludeInactive: c.Bool("all")})
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(wallets)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tNAME\tPRIORITY\tACTIVE\tTXNS\tALERTS\tLAST SYNC")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%d\t%d\t%s\n",
					wallet.ID,
					wallet.Address,
					optional(wallet.Name),
					wallet.Priority,
					wallet.Active,
					wallet.TransactionCount,
					wallet.AlertCount,
					formatTime(wallet.LastSync),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func dbTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"txns"},
		Usage:   "List stored transactions straight from the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Only transactions of this wallet ID",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only this category",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum rows",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			params := db.ListTransactionsParams{
				WalletID: c.String("wallet"),
				Category: c.String("type"),
				Limit:    int32(c.Int("limit")),
			}
			txns, err := store.ListTransactions(c.Context, params)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			total, err := store.CountTransactions(c.Context, params)
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tWALLET ID\tTYPE\tAMOUNT\tSTATUS\tSLOT\tBLOCK TIME")
			for _, txn := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					shorten(txn.Signature, 16),
					txn.WalletID,
					txn.Category,
					optional(txn.Amount),
					txn.Status,
					txn.Slot,
					formatTime(txn.BlockTime),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nShowing %d of %d transactions\n", len(txns), total)
			return nil
		},
	}
}

func dbMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the schema (idempotent)",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Println("✓ Schema applied")
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool.Close, nil
}
