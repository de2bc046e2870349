package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solwatch/client"
	"github.com/urfave/cli/v2"
)

func transactionCommands() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"txns", "tx"},
		Usage:   "Browse classified transactions via the HTTP API",
		Subcommands: []*cli.Command{
			transactionListCommand(),
		},
	}
}

func transactionListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored transactions, newest first",
		Description: `List stored transactions with optional server-side filters and
client-side jq filters over each transaction's JSON.

Examples:
  solwatch tx ls --wallet <id> --type spl_transfer
  solwatch tx ls --jq '.tokenSymbol == "USDC"' --jq '(.amount | tonumber) > 100'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Only transactions of this wallet ID",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only this category (sol_transfer, spl_transfer, nft_transfer, program_interaction)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Page size",
				Value:   100,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Rows to skip",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.BoolFlag{
				Name:    "detailed",
				Aliases: []string{"d"},
				Usage:   "Print each transaction in full",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			page, err := apiClient(c).ListTransactions(c.Context, client.TransactionFilter{
				WalletID: c.String("wallet"),
				Type:     c.String("type"),
				Limit:    c.Int("limit"),
				Offset:   c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			txns := make([]*client.Transaction, 0, len(page.Transactions))
			for _, txn := range page.Transactions {
				ok, err := filters.Match(txn)
				if err != nil {
					return err
				}
				if ok {
					txns = append(txns, txn)
				}
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			if c.Bool("detailed") {
				for _, txn := range txns {
					printTransactionDetailed(txn)
				}
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SIGNATURE\tTYPE\tAMOUNT\tFROM\tTO\tSTATUS\tTIME")
				for _, txn := range txns {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						shorten(txn.Signature, 16),
						txn.Type,
						formatAmount(txn),
						shorten(txn.From, 12),
						shorten(optional(txn.To), 12),
						txn.Status,
						formatTime(txn.BlockTime),
					)
				}
				w.Flush()
			}

			fmt.Fprintf(os.Stderr, "\nShowing %d of %d transactions (offset %d)\n", len(txns), page.Total, page.Offset)
			return nil
		},
	}
}

func printTransactionDetailed(txn *client.Transaction) {
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Signature:  %s\n", txn.Signature)
	fmt.Printf("Wallet ID:  %s\n", txn.WalletID)
	fmt.Printf("Type:       %s\n", txn.Type)
	fmt.Printf("Status:     %s\n", txn.Status)
	fmt.Printf("Amount:     %s\n", formatAmount(txn))
	fmt.Printf("From:       %s\n", txn.From)
	fmt.Printf("To:         %s\n", optional(txn.To))
	if txn.TokenMint != nil {
		fmt.Printf("Token Mint: %s\n", *txn.TokenMint)
	}
	if txn.ProgramID != nil {
		fmt.Printf("Program:    %s\n", *txn.ProgramID)
	}
	fmt.Printf("Fee:        %s SOL\n", optional(txn.Fee))
	fmt.Printf("Slot:       %d\n", txn.Slot)
	fmt.Printf("Block Time: %s\n", formatTime(txn.BlockTime))
	fmt.Printf("Stored:     %s\n", txn.CreatedAt.Format(time.RFC3339))
}

// formatAmount renders the amount with its token symbol, or SOL for
// native transfers.
func formatAmount(txn *client.Transaction) string {
	if txn.Amount == nil {
		return "-"
	}
	unit := "SOL"
	switch {
	case txn.TokenSymbol != nil && *txn.TokenSymbol != "":
		unit = *txn.TokenSymbol
	case txn.TokenMint != nil:
		unit = shorten(*txn.TokenMint, 8)
	}
	return *txn.Amount + " " + unit
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
