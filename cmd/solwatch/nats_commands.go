package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solwatch/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// tailCommand streams transaction and notification events from JetStream.
func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream transaction and notification events",
		Description: `Stream events published to NATS JetStream.

Transactions are published to txns.{wallet_address} and notifications to
notifications.{wallet_id} (notifications.global for global rules).

Examples:
  solwatch nats tail
  solwatch nats tail --events txns --address 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
  solwatch nats tail --jq '.type == "spl_transfer"' --count 5`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "events",
				Usage: "Which events to stream: txns, notifications or all",
				Value: "all",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "Only transactions of this wallet address",
			},
			&cli.StringFlag{
				Name:  "wallet-id",
				Usage: "Only notifications of this wallet ID",
			},
			&cli.BoolFlag{
				Name:  "from-start",
				Usage: "Replay retained events instead of only new ones",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter over the event JSON that must evaluate to true (repeatable)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many matching events (0 = unlimited)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Exit after this long (0 = until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			subjects, err := tailSubjects(c.String("events"), c.String("address"), c.String("wallet-id"))
			if err != nil {
				return err
			}
			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if timeout := c.Duration("timeout"); timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			natsURL := c.String("nats-url")
			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			cfg := jetstream.OrderedConsumerConfig{
				FilterSubjects: subjects,
				DeliverPolicy:  jetstream.DeliverNewPolicy,
			}
			if c.Bool("from-start") {
				cfg.DeliverPolicy = jetstream.DeliverAllPolicy
			}
			cons, err := js.OrderedConsumer(ctx, natspkg.StreamName, cfg)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "📡 Subscribing to: %v\n", subjects)
				fmt.Fprintf(os.Stderr, "   NATS: %s\n", natsURL)
				fmt.Fprintf(os.Stderr, "\nWaiting for events... (Ctrl-C to exit)\n\n")
			}

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer consumeCtx.Stop()

			limit := c.Int("count")
			matched := 0
			for {
				select {
				case msg := <-msgChan:
					ok, err := filters.Match(msg.Data())
					if err != nil {
						fmt.Fprintf(os.Stderr, "Skipping event on %s: %v\n", msg.Subject(), err)
						continue
					}
					if !ok {
						continue
					}
					matched++

					if jsonOutput {
						fmt.Println(string(msg.Data()))
					} else if err := printEvent(msg.Subject(), msg.Data()); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
					}

					if limit > 0 && matched >= limit {
						return nil
					}

				case <-ctx.Done():
					if !jsonOutput {
						fmt.Fprintf(os.Stderr, "\n✅ Received %d events\n", matched)
					}
					return nil
				}
			}
		},
	}
}

// tailSubjects picks the JetStream subjects for the requested event kinds.
func tailSubjects(events, address, walletID string) ([]string, error) {
	txns := natspkg.TransactionSubjects
	if address != "" {
		txns = natspkg.TransactionSubject(address)
	}
	notifications := natspkg.NotificationSubjects
	if walletID != "" {
		notifications = natspkg.NotificationSubject(walletID)
	}

	switch events {
	case "txns", "transactions":
		return []string{txns}, nil
	case "notifications":
		return []string{notifications}, nil
	case "all", "":
		return []string{txns, notifications}, nil
	default:
		return nil, fmt.Errorf("invalid --events %q: must be txns, notifications or all", events)
	}
}

func printEvent(subject string, data []byte) error {
	if strings.HasPrefix(subject, "notifications.") {
		var event natspkg.NotificationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		fmt.Printf("🔔 %s\n", event.Title)
		fmt.Printf("   %s\n", event.Message)
		fmt.Printf("   Wallet:    %s\n", event.WalletAddress)
		fmt.Printf("   Signature: %s\n", event.Signature)
		fmt.Printf("   Published: %s\n\n", event.PublishedAt.Format(time.RFC3339))
		return nil
	}

	var event natspkg.TransactionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	amount := "-"
	if event.Amount != nil {
		amount = *event.Amount
		if event.TokenSymbol != nil {
			amount += " " + *event.TokenSymbol
		}
	}
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Signature:    %s\n", event.Signature)
	fmt.Printf("Wallet:       %s\n", event.WalletAddress)
	fmt.Printf("Type:         %s\n", event.Type)
	fmt.Printf("Amount:       %s\n", amount)
	fmt.Printf("Status:       %s\n", event.Status)
	fmt.Printf("Slot:         %d\n", event.Slot)
	fmt.Printf("Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
	return nil
}
