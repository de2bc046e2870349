package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brojonat/solwatch/client"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solwatch",
		Usage: "Solana wallet tracking and alerting CLI",
		Description: `A command-line tool for the solwatch service.

Manage wallets and alert rules through the HTTP API, inspect the database
directly, tail NATS events and manage Temporal sync schedules.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			walletCommands(),
			alertCommands(),
			notificationCommands(),
			transactionCommands(),
			classifyCommand(),
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					dbWalletsCommand(),
					dbTransactionsCommand(),
					dbMigrateCommand(),
				},
			},
			{
				Name:  "temporal",
				Usage: "Temporal schedule inspection and management commands",
				Subcommands: []*cli.Command{
					listSchedulesCommand(),
					describeScheduleCommand(),
					deleteScheduleCommand(),
					triggerScheduleCommand(),
					reconcileCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "NATS event streaming commands",
				Subcommands: []*cli.Command{
					tailCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "solwatch server URL",
				EnvVars: []string{"SOLWATCH_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "task-queue",
				Usage:   "Temporal task queue for sync workflows",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "solwatch-sync",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Debug logging to stderr",
			},
		},
	}
}

// cliLogger logs to stderr, quietly unless --verbose is set.
func cliLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// apiClient builds an HTTP client for the server named by --server.
func apiClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server"), nil, cliLogger(c))
}
