package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Client is the production Scheduler backed by Temporal schedules.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) createWalletSchedule(ctx context.Context, walletID string, interval time.Duration) error {
	id := ScheduleID(walletID)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "sync-wallet-run-" + walletID,
			Workflow:  SyncWalletWorkflow,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{SyncWalletInput{WalletID: walletID}},
		},
		Memo: map[string]interface{}{
			"wallet_id":  walletID,
			"created_by": "solwatch",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"wallet_id", walletID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("wallet schedule created",
		"wallet_id", walletID,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// UpsertWalletSchedule creates the wallet's schedule, or updates the
// interval of an existing one.
func (c *Client) UpsertWalletSchedule(ctx context.Context, walletID string, interval time.Duration) error {
	id := ScheduleID(walletID)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.createWalletSchedule(ctx, walletID, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"wallet_id", walletID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("wallet schedule updated",
		"wallet_id", walletID,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteWalletSchedule deletes the wallet's schedule. It returns
// ErrScheduleNotFound if there was none.
func (c *Client) DeleteWalletSchedule(ctx context.Context, walletID string) error {
	id := ScheduleID(walletID)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %q", ErrScheduleNotFound, id)
		}
		c.logger.Error("failed to delete schedule",
			"wallet_id", walletID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("wallet schedule deleted",
		"wallet_id", walletID,
		"schedule_id", id,
	)
	return nil
}

// TriggerWalletSync starts the wallet's scheduled workflow immediately.
func (c *Client) TriggerWalletSync(ctx context.Context, walletID string) error {
	id := ScheduleID(walletID)
	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Trigger(ctx, client.ScheduleTriggerOptions{}); err != nil {
		return fmt.Errorf("failed to trigger schedule %q: %w", id, err)
	}
	c.logger.Info("wallet schedule triggered", "wallet_id", walletID, "schedule_id", id)
	return nil
}

// SDKClient returns the underlying Temporal SDK client.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
