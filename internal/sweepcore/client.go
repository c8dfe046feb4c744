package sweepcore

import (
	"context"
	"errors"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// FeeQuote is a fresh snapshot of network fee parameters. BaseFee is nil
// on pre-1559 chains, in which case GasPrice drives a legacy transaction.
type FeeQuote struct {
	GasPrice *big.Int
	BaseFee  *big.Int
	TipCap   *big.Int
}

// ChainClient is the wire-level surface the orchestrator needs. The
// production implementation wraps go-ethereum's ethclient; tests provide
// a deterministic fake.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	FeeQuote(ctx context.Context) (*FeeQuote, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Close()
}

// rpcChain implements ChainClient over one HTTP endpoint.
type rpcChain struct {
	ec       *ethclient.Client
	throttle time.Duration
}

// Dial connects to an RPC endpoint with keep-alives and sane timeouts.
// throttle, when positive, spaces consecutive calls to avoid 429s.
func Dial(rpcURL string, throttle time.Duration) (ChainClient, error) {
	transport := &http.Transport{
		MaxIdleConns:       100,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	rpcClient, err := rpc.DialHTTPWithClient(rpcURL, httpClient)
	if err != nil {
		return nil, err
	}
	return &rpcChain{ec: ethclient.NewClient(rpcClient), throttle: throttle}, nil
}

func (c *rpcChain) pace() {
	if c.throttle > 0 {
		time.Sleep(c.throttle)
	}
}

func (c *rpcChain) ChainID(ctx context.Context) (*big.Int, error) {
	c.pace()
	return c.ec.ChainID(ctx)
}

func (c *rpcChain) BlockNumber(ctx context.Context) (uint64, error) {
	c.pace()
	return c.ec.BlockNumber(ctx)
}

func (c *rpcChain) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.pace()
	return c.ec.BalanceAt(ctx, addr, nil)
}

func (c *rpcChain) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	c.pace()
	return c.ec.PendingNonceAt(ctx, addr)
}

// FeeQuote fetches the head base fee and a suggested tip; on chains
// without a base fee it falls back to the legacy suggested gas price.
func (c *rpcChain) FeeQuote(ctx context.Context) (*FeeQuote, error) {
	c.pace()
	head, err := c.ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if head.BaseFee == nil {
		gp, err := c.ec.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return &FeeQuote{GasPrice: gp}, nil
	}
	tip, err := c.ec.SuggestGasTipCap(ctx)
	if err != nil {
		// Some testnet providers lack eth_maxPriorityFeePerGas.
		tip = big.NewInt(1_000_000_000)
	}
	return &FeeQuote{BaseFee: new(big.Int).Set(head.BaseFee), TipCap: tip}, nil
}

func (c *rpcChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.pace()
	return c.ec.SendTransaction(ctx, tx)
}

// WaitMined polls for the receipt until ctx expires.
func (c *rpcChain) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		rec, err := c.ec.TransactionReceipt(ctx, hash)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !isTransientNetworkError(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *rpcChain) Close() { c.ec.Close() }

// isTransientNetworkError detects short-lived provider/transport failures
// worth retrying.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "context deadline exceeded"),
		strings.Contains(s, "client.timeout exceeded"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "tls handshake timeout"),
		strings.Contains(s, "eof"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "too many requests"),
		strings.Contains(s, "-32005"),
		strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "504"):
		return true
	}
	return false
}

// isDeterministicTxError reports submission failures that retrying cannot
// fix: the node rejected the transaction itself, not the transport.
func isDeterministicTxError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "insufficient funds"),
		strings.Contains(s, "nonce too low"),
		strings.Contains(s, "intrinsic gas too low"),
		strings.Contains(s, "exceeds block gas limit"),
		strings.Contains(s, "invalid sender"):
		return true
	}
	return false
}

// classifyRPCError returns a coarse class for RPC transport errors.
func classifyRPCError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "context deadline exceeded") {
		return "rpc_timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "rpc_timeout"
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "connection reset") || strings.Contains(s, "broken pipe") || strings.Contains(s, "eof") {
		return "rpc_unavailable"
	}
	if strings.Contains(s, "too many requests") || strings.Contains(s, "-32005") {
		return "rpc_rate_limited"
	}
	return "rpc_error"
}
