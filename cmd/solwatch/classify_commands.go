package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/brojonat/solwatch/service/solana"
	"github.com/urfave/cli/v2"
)

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Fetch a transaction from RPC and show how it would be classified",
		ArgsUsage: "SIGNATURE",
		Description: `Fetch one transaction by signature, classify it from the point of view of
--wallet, and optionally test an alert rule against the result.

Example:
  solwatch classify <sig> --wallet <address> --rule-type amount_threshold --condition '{"operator":"gt","value":"1"}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Wallet address the transaction is attributed to",
			},
			&cli.StringFlag{
				Name:  "rule-type",
				Usage: "Also evaluate a rule of this type against the result",
			},
			&cli.StringFlag{
				Name:  "condition",
				Usage: "Rule condition JSON (with --rule-type)",
				Value: "{}",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "RPC timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}

			var rule *alerts.Rule
			if c.IsSet("rule-type") {
				r, err := alerts.NewRule("cli", nil, alerts.RuleType(c.String("rule-type")), json.RawMessage(c.String("condition")))
				if err != nil {
					return err
				}
				rule = r
			}

			// first URL of a comma separated list, like the services accept
			endpoint := strings.TrimSpace(strings.Split(c.String("rpc-url"), ",")[0])
			chain := solana.NewClient(solana.NewRPCClient(endpoint), solana.EndpointLabel(endpoint), nil, cliLogger(c))

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			raw, err := chain.FetchRawTransaction(ctx, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to fetch transaction: %w", err)
			}

			tx, ok := solana.Classify(raw, c.String("wallet"))
			if !ok {
				return fmt.Errorf("transaction has no metadata and cannot be classified")
			}

			var matched *bool
			if rule != nil {
				m := alerts.Matches(*rule, tx)
				matched = &m
			}

			if c.Bool("json") {
				return outputJSON(struct {
					*solana.ClassifiedTransaction
					RuleMatched *bool `json:"ruleMatched,omitempty"`
				}{tx, matched})
			}

			fmt.Printf("Signature:  %s\n", tx.Signature)
			fmt.Printf("Category:   %s\n", tx.Category)
			fmt.Printf("Status:     %s\n", tx.Status)
			fmt.Printf("From:       %s\n", tx.From)
			fmt.Printf("To:         %s\n", optional(tx.To))
			fmt.Printf("Amount:     %s\n", optional(tx.Amount))
			if tx.TokenMint != nil {
				fmt.Printf("Token Mint: %s (%s)\n", *tx.TokenMint, optional(tx.TokenSymbol))
			}
			if tx.ProgramID != nil {
				fmt.Printf("Program:    %s\n", *tx.ProgramID)
			}
			fmt.Printf("Fee:        %s\n", optional(tx.Fee))
			fmt.Printf("Slot:       %d\n", tx.Slot)
			fmt.Printf("Block Time: %s\n", formatTime(tx.BlockTime))

			if matched != nil {
				if *matched {
					title, message := alerts.Render(*rule, alerts.WalletRef{Address: c.String("wallet")}, tx)
					fmt.Printf("\n✓ Rule matches\n  %s\n  %s\n", title, message)
				} else {
					fmt.Printf("\n✗ Rule does not match\n")
				}
			}
			return nil
		},
	}
}
