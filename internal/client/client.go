// =============================
// File: internal/client/client.go
// =============================
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/wallet"
)

// Ledger is the part of the ledger the client talks to.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	GetAccount(ctx context.Context, key solana.PublicKey) (*ledger.Account, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (*ledger.Result, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*ledger.Result, error)
}

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Millisecond
)

// Client builds, signs and submits transactions.
type Client struct {
	ledger     Ledger
	logger     *zap.Logger
	budget     computebudget.ComputeBudgetConfig
	retries    int
	retryDelay time.Duration
	analyzer   *ErrorAnalyzer
}

type Option func(*Client)

// WithComputeBudget sets the budget requested by every transaction.
func WithComputeBudget(cfg computebudget.ComputeBudgetConfig) Option {
	return func(c *Client) {
		c.budget = cfg
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// New creates a client over l.
func New(l Ledger, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		ledger:     l,
		logger:     logger.Named("client"),
		budget:     computebudget.NewDefaultConfig(),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.analyzer = NewErrorAnalyzer(c.logger)
	return c
}

// Analyzer returns the error analyzer used for failed transactions.
func (c *Client) Analyzer() *ErrorAnalyzer {
	return c.analyzer
}

// isTransient reports whether resubmitting can succeed without changing
// the transaction's instructions.
func isTransient(err error) bool {
	return errors.Is(err, ledger.ErrAccountInUse) || errors.Is(err, ledger.ErrBlockhashNotFound)
}

// Submit prepends the compute budget instructions, signs with the payer and
// the extra signers, and sends the transaction. Lock conflicts and expired
// blockhashes are retried with a fresh blockhash.
func (c *Client) Submit(ctx context.Context, instructions []solana.Instruction, payer *wallet.Wallet, signers ...*wallet.Wallet) (*ledger.Result, error) {
	op := func() (*ledger.Result, error) {
		tx, err := c.createSignedTransaction(ctx, instructions, payer, signers...)
		if err != nil {
			return nil, err
		}

		res, err := c.ledger.SendTransaction(ctx, tx)
		if err != nil {
			if isTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}

	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying transaction", zap.Error(err), zap.Duration("backoff", d))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Transaction confirmed",
		zap.String("signature", res.Signature.String()),
		zap.Uint64("slot", res.Slot),
		zap.Uint64("compute_units", res.ComputeUnitsConsumed))
	return res, nil
}

// Simulate runs the instructions without committing them.
func (c *Client) Simulate(ctx context.Context, instructions []solana.Instruction, payer *wallet.Wallet, signers ...*wallet.Wallet) (*ledger.Result, error) {
	tx, err := c.createSignedTransaction(ctx, instructions, payer, signers...)
	if err != nil {
		return nil, err
	}
	return c.ledger.SimulateTransaction(ctx, tx)
}

func (c *Client) createSignedTransaction(ctx context.Context, instructions []solana.Instruction, payer *wallet.Wallet, signers ...*wallet.Wallet) (*solana.Transaction, error) {
	blockhash, err := c.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to get recent blockhash: %w", err))
	}

	budgetIxs, err := computebudget.BuildComputeBudgetInstructions(c.budget)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	all := make([]solana.Instruction, 0, len(budgetIxs)+len(instructions))
	all = append(all, budgetIxs...)
	all = append(all, instructions...)

	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(payer.PublicKey))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create transaction: %w", err))
	}

	if err := wallet.SignTransaction(tx, append([]*wallet.Wallet{payer}, signers...)...); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
	}
	return tx, nil
}
