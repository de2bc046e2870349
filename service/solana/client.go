package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrInvalidAddress is returned when a wallet address is not valid base58.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrRPCUnavailable is returned when the node could not list signatures.
	ErrRPCUnavailable = errors.New("solana rpc unavailable")
)

// RPCClient is the subset of Solana RPC calls the client needs.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	// GetParsedTransaction returns nil, nil when the node does not know
	// the signature.
	GetParsedTransaction(
		ctx context.Context,
		signature solana.Signature,
	) (*TransactionResult, error)
}

// Client fetches raw wallet history from a Solana node.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // label for metrics, e.g. "mainnet" or the RPC host

	requestDelay   time.Duration
	retryBaseDelay time.Duration
	maxAttempts    int
}

// NewClient creates a new Solana client. If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:            rpcClient,
		logger:         logger,
		metrics:        m,
		endpoint:       endpoint,
		retryBaseDelay: time.Second,
		maxAttempts:    3,
	}
}

// WithRequestDelay spaces out per-signature getTransaction calls. Public
// mainnet endpoints need ~600ms; paid providers can go much lower.
func (c *Client) WithRequestDelay(d time.Duration) *Client {
	c.requestDelay = d
	return c
}

// FetchRawTransactions returns up to limit of the wallet's most recent
// transactions, newest first. Signatures whose details cannot be fetched
// after retries are logged and left out.
func (c *Client) FetchRawTransactions(ctx context.Context, address string, limit int) ([]*RawTransaction, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	signatures, err := c.listSignatures(ctx, pubkey, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	out := make([]*RawTransaction, 0, len(signatures))
	for i, sig := range signatures {
		if i > 0 && c.requestDelay > 0 {
			if err := sleepCtx(ctx, c.requestDelay); err != nil {
				return nil, err
			}
		}

		res, err := c.fetchTransaction(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WarnContext(ctx, "failed to get transaction details after retries, skipping",
				"signature", sig.Signature.String(),
				"error", err,
			)
			continue
		}
		if res == nil {
			c.logger.DebugContext(ctx, "transaction not found on node, skipping",
				"signature", sig.Signature.String(),
			)
			continue
		}

		out = append(out, toRawTransaction(sig, res))
	}

	if c.metrics != nil {
		c.metrics.RecordTransactionsFetched(address, len(out))
	}
	c.logger.InfoContext(ctx, "fetched raw transactions",
		"wallet", address,
		"signatures", len(signatures),
		"fetched", len(out),
	)

	return out, nil
}

// FetchRawTransaction fetches a single transaction by signature.
func (c *Client) FetchRawTransaction(ctx context.Context, signature string) (*RawTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	res, err := c.fetchTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}
	if res == nil {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}

	entry := &rpc.TransactionSignature{Signature: sig, Slot: res.Slot}
	if res.BlockTime != nil {
		bt := solana.UnixTimeSeconds(*res.BlockTime)
		entry.BlockTime = &bt
	}
	if res.Meta != nil && res.Meta.Err != nil {
		entry.Err = res.Meta.Err
	}
	return toRawTransaction(entry, res), nil
}

func (c *Client) listSignatures(ctx context.Context, pubkey solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}

	c.logger.DebugContext(ctx, "calling getSignaturesForAddress",
		"wallet", pubkey.String(),
		"limit", limit,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, pubkey, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"wallet", pubkey.String(),
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("getSignaturesForAddress", status, c.endpoint, duration)
		if err == nil {
			c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
		}
	}
	return signatures, err
}

// fetchTransaction retries with exponential backoff, backing off harder on
// 429 responses.
func (c *Client) fetchTransaction(ctx context.Context, sig solana.Signature) (*TransactionResult, error) {
	var (
		res *TransactionResult
		err error
	)
	for attempt := range c.maxAttempts {
		start := time.Now()
		res, err = c.rpc.GetParsedTransaction(ctx, sig)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("getTransaction", status, c.endpoint, duration)
		}
		if err == nil {
			return res, nil
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		reason := "timeout_or_error"
		backoff := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if strings.Contains(err.Error(), "429") {
			reason = "rate_limit"
			backoff *= 2
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("getTransaction", reason)
		}
		c.logger.WarnContext(ctx, "getTransaction failed, retrying",
			"signature", sig.String(),
			"attempt", attempt+1,
			"reason", reason,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		if serr := sleepCtx(ctx, backoff); serr != nil {
			return nil, serr
		}
	}
	return nil, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
