package sweepcore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Params drives one sweep run. Callbacks keep rendering out of the core:
// Logf gets diagnostic lines, OnResult gets exactly one event per account.
type Params struct {
	ChainID        *big.Int // nil: query the client once at start
	GasUnits       uint64
	BufferPct      int64
	Policy         ReservePolicy
	ConfirmTimeout time.Duration // 0: do not wait for inclusion
	RetryAttempts  int           // transient-error retries per RPC step
	TxDelay        time.Duration // pause between accounts
	DryRun         bool          // decide but never broadcast

	Logf     func(format string, a ...any)
	OnResult func(Result)
}

func (p Params) logf(s string, a ...any) {
	if p.Logf != nil {
		p.Logf(s, a...)
	}
}

func (p Params) attempts() int {
	if p.RetryAttempts < 1 {
		return 1
	}
	return p.RetryAttempts
}

// Run sweeps accounts into dest sequentially. Per-account failures are
// recorded and the loop continues; only a cancelled context stops it
// early, returning the partial summary.
func Run(ctx context.Context, accounts []Account, dest common.Address, client ChainClient, p Params) (*Summary, error) {
	if p.GasUnits == 0 {
		p.GasUnits = 21000
	}
	if p.ChainID == nil {
		id, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
		p.ChainID = id
	}

	sum := NewSummary()
	for i, acc := range accounts {
		if ctx.Err() != nil {
			p.logf("interrupted after %d/%d accounts", i, len(accounts))
			break
		}
		res := sweepOne(ctx, acc, dest, client, p)
		sum.Add(res)
		if p.OnResult != nil {
			p.OnResult(res)
		}
		if p.TxDelay > 0 && i < len(accounts)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(p.TxDelay):
			}
		}
	}
	return sum, nil
}

// sweepOne runs the five-step pipeline for a single wallet: balance,
// fee quote, decision, submission, confirmation.
func sweepOne(ctx context.Context, acc Account, dest common.Address, client ChainClient, p Params) Result {
	res := Result{Address: acc.Address.Hex(), Timestamp: time.Now()}
	short := ShortAddr(acc.Address.Hex())

	balance, err := withRetry(ctx, p.attempts(), func() (*big.Int, error) {
		return client.BalanceAt(ctx, acc.Address)
	})
	if err != nil {
		p.logf("[✗] %s balance query: %v", short, err)
		return failed(res, ErrNetwork, classifyRPCError(err)+": "+err.Error())
	}
	res.BalanceBefore = balance

	// Cheap pre-filter on the raw balance: no point quoting fees for a
	// wallet that cannot clear the threshold.
	if d := Decide(balance, FeeEstimate{GasUnits: p.GasUnits}, ReservePolicy{
		MinBalance: p.Policy.MinBalance, InclusiveMin: p.Policy.InclusiveMin,
	}); !d.Send && d.SkipReason == SkipBelowThreshold {
		p.logf("[!] %s %s (balance %s ETH)", short, d.SkipReason, FmtETH(balance))
		return skipped(res, d.SkipReason)
	}

	quote, err := withRetry(ctx, p.attempts(), func() (*FeeQuote, error) {
		return client.FeeQuote(ctx)
	})
	if err != nil {
		p.logf("[✗] %s fee quote: %v", short, err)
		return failed(res, ErrNetwork, classifyRPCError(err)+": "+err.Error())
	}

	fee := feeEstimateFromQuote(quote, p.GasUnits, p.BufferPct)
	decision := Decide(balance, fee, p.Policy)
	if !decision.Send {
		p.logf("[!] %s %s (balance %s ETH)", short, decision.SkipReason, FmtETH(balance))
		return skipped(res, decision.SkipReason)
	}

	if p.DryRun {
		p.logf("[i] %s dry-run: would send %s ETH", short, FmtETH(decision.Amount))
		res.AmountSent = decision.Amount
		res.Outcome = OutcomeSucceeded
		res.Detail = "dry-run"
		return res
	}

	nonce, err := withRetry(ctx, p.attempts(), func() (uint64, error) {
		return client.PendingNonceAt(ctx, acc.Address)
	})
	if err != nil {
		p.logf("[✗] %s nonce query: %v", short, err)
		return failed(res, ErrNetwork, classifyRPCError(err)+": "+err.Error())
	}

	tx := buildTransferTx(p.ChainID, nonce, dest, decision.Amount, fee)
	signed, err := signTransferTx(tx, p.ChainID, acc)
	if err != nil {
		return failed(res, ErrTransaction, "sign: "+err.Error())
	}

	if err := submitWithRetry(ctx, client, signed, p.attempts()); err != nil {
		p.logf("[✗] %s submit: %v", short, err)
		return failed(res, ErrTransaction, err.Error())
	}
	hash := signed.Hash()
	p.logf("[>] %s sent %s ETH tx=%s", short, FmtETH(decision.Amount), hash.Hex())

	if p.ConfirmTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, p.ConfirmTimeout)
		rec, err := client.WaitMined(waitCtx, hash)
		timedOut := errors.Is(waitCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil {
			p.logf("[✗] %s confirmation: %v", short, err)
			kind := ErrTransaction
			if timedOut {
				kind = ErrTimeout
			}
			return failed(res, kind, "confirmation: "+err.Error())
		}
		if rec.Status == 0 {
			return failed(res, ErrTransaction, "reverted: "+hash.Hex())
		}
		p.logf("[✓] %s confirmed in block %d", short, rec.BlockNumber.Uint64())
	}

	res.AmountSent = decision.Amount
	res.Outcome = OutcomeSucceeded
	res.Detail = hash.Hex()
	return res
}

// withRetry repeats an RPC read on transient failures with capped
// exponential backoff. Non-transient errors return immediately.
func withRetry[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var zero T
	backoff := 300 * time.Millisecond
	var lastErr error
	for i := 1; i <= attempts; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !isTransientNetworkError(err) || i == attempts {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return zero, lastErr
}

// submitWithRetry retries broadcast only on transient transport errors.
// Deterministic rejections (underfunded, bad nonce) fail at once: the
// node will keep saying no.
func submitWithRetry(ctx context.Context, client ChainClient, tx *types.Transaction, attempts int) error {
	backoff := 300 * time.Millisecond
	var lastErr error
	for i := 1; i <= attempts; i++ {
		err := client.SendTransaction(ctx, tx)
		if err == nil {
			return nil
		}
		lastErr = err
		if isDeterministicTxError(err) || !isTransientNetworkError(err) || i == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return lastErr
}

func failed(res Result, kind ErrorKind, detail string) Result {
	res.Outcome = OutcomeFailed
	res.ErrorKind = kind
	res.Detail = detail
	return res
}

func skipped(res Result, reason string) Result {
	res.Outcome = OutcomeSkipped
	res.Detail = reason
	return res
}
