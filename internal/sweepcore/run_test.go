package sweepcore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAccounts derives n deterministic wallets.
func testAccounts(t *testing.T, n int) []Account {
	t.Helper()
	out := make([]Account, 0, n)
	for i := 1; i <= n; i++ {
		acc, err := NewAccount(fmt.Sprintf("%064x", i))
		require.NoError(t, err)
		out = append(out, acc)
	}
	return out
}

var errConnReset = errors.New("read tcp: connection reset by peer")

// fakeChain is a scripted ChainClient. Error queues pop one error per
// call, so "fail once then succeed" is expressed as a one-element queue.
type fakeChain struct {
	mu          sync.Mutex
	balances    map[common.Address]*big.Int
	balanceErrs map[common.Address][]error
	quote       FeeQuote
	quoteErrs   []error
	sendErrs    map[common.Address][]error
	neverMine   bool
	sent        []*types.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:    map[common.Address]*big.Int{},
		balanceErrs: map[common.Address][]error{},
		sendErrs:    map[common.Address][]error{},
		quote:       FeeQuote{GasPrice: big.NewInt(2_500_000_000)},
	}
}

func pop(q []error) (error, []error) {
	if len(q) == 0 {
		return nil, q
	}
	return q[0], q[1:]
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(6342), nil }
func (f *fakeChain) BlockNumber(context.Context) (uint64, error) { return 1, nil }

func (f *fakeChain) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if err, f.balanceErrs[addr] = pop(f.balanceErrs[addr]); err != nil {
		return nil, err
	}
	if b, ok := f.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeChain) FeeQuote(context.Context) (*FeeQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if err, f.quoteErrs = pop(f.quoteErrs); err != nil {
		return nil, err
	}
	q := f.quote
	return &q, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	signer := types.LatestSignerForChainID(big.NewInt(6342))
	from, err := types.Sender(signer, tx)
	if err != nil {
		return err
	}
	if err, f.sendErrs[from] = pop(f.sendErrs[from]); err != nil {
		return err
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.neverMine {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42), TxHash: hash}, nil
}

func (f *fakeChain) Close() {}

func testParams() Params {
	return Params{
		GasUnits:       21000,
		BufferPct:      20,
		ConfirmTimeout: time.Second,
		RetryAttempts:  3,
	}
}

// Literal run scenario: A sends after one transient submit failure, B's
// balance query dies, C is empty -> {succeeded:1, failed:1, skipped:1}.
func TestRunMixedOutcomes(t *testing.T) {
	accs := testAccounts(t, 3)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.sendErrs[accs[0].Address] = []error{errConnReset}
	fc.balanceErrs[accs[1].Address] = []error{errors.New("boom")}
	// accs[2] keeps the zero default

	sum, err := Run(context.Background(), accs, dest, fc, testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 3, sum.Total())
	assert.Equal(t, wei("2437000000000000"), sum.TotalMoved)
	require.Len(t, fc.sent, 1)
}

func TestRunOneResultPerAccount(t *testing.T) {
	accs := testAccounts(t, 5)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.balances[accs[2].Address] = wei("2500000000000000")
	fc.balanceErrs[accs[1].Address] = []error{errors.New("boom")}
	fc.quoteErrs = []error{errors.New("boom")} // first fee quote (accs[0]) fails hard

	var events []Result
	p := testParams()
	p.OnResult = func(r Result) { events = append(events, r) }

	sum, err := Run(context.Background(), accs, dest, fc, p)
	require.NoError(t, err)
	assert.Equal(t, len(accs), sum.Total())
	assert.Len(t, events, len(accs))
	assert.GreaterOrEqual(t, sum.Failed, 2)
	assert.Equal(t, sum.Succeeded+sum.Failed+sum.Skipped, len(accs))
}

func TestRunNetworkFailureIsFailedNotSkipped(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.quoteErrs = []error{errors.New("rpc down")}

	sum, err := Run(context.Background(), accs, dest, fc, testParams())
	require.NoError(t, err)
	require.Len(t, sum.Results, 1)
	res := sum.Results[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ErrNetwork, res.ErrorKind)
}

func TestRunRetriesTransientReads(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.balanceErrs[accs[0].Address] = []error{errConnReset, errConnReset}

	sum, err := Run(context.Background(), accs, dest, fc, testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
}

func TestRunDoesNotRetryDeterministicSubmitErrors(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.sendErrs[accs[0].Address] = []error{
		errors.New("insufficient funds for gas * price + value"),
		nil, // would succeed on retry, must never be reached
	}

	sum, err := Run(context.Background(), accs, dest, fc, testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, fc.sent)
	assert.Equal(t, ErrTransaction, sum.Results[0].ErrorKind)
}

func TestRunConfirmationTimeout(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.neverMine = true

	p := testParams()
	p.ConfirmTimeout = 50 * time.Millisecond
	sum, err := Run(context.Background(), accs, dest, fc, p)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	assert.Equal(t, ErrTimeout, sum.Results[0].ErrorKind)
}

func TestRunFireAndForgetWhenNoConfirmTimeout(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.neverMine = true // irrelevant: nobody waits

	p := testParams()
	p.ConfirmTimeout = 0
	sum, err := Run(context.Background(), accs, dest, fc, p)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
}

func TestRunCancelStopsNewAccounts(t *testing.T) {
	accs := testAccounts(t, 4)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	for _, a := range accs {
		fc.balances[a.Address] = wei("2500000000000000")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := testParams()
	processed := 0
	p.OnResult = func(Result) {
		processed++
		if processed == 2 {
			cancel()
		}
	}
	sum, err := Run(ctx, accs, dest, fc, p)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total(), "partial summary after interrupt")
}

func TestRunDryRunBroadcastsNothing(t *testing.T) {
	accs := testAccounts(t, 2)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("2500000000000000")
	fc.balances[accs[1].Address] = wei("2500000000000000")

	p := testParams()
	p.DryRun = true
	sum, err := Run(context.Background(), accs, dest, fc, p)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Empty(t, fc.sent)
}

func TestRunSendsDynamicFeeTxWhenBaseFeePresent(t *testing.T) {
	accs := testAccounts(t, 1)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	fc := newFakeChain()
	fc.balances[accs[0].Address] = wei("1000000000000000000")
	fc.quote = FeeQuote{BaseFee: big.NewInt(1_000_000_000), TipCap: big.NewInt(500_000_000)}

	sum, err := Run(context.Background(), accs, dest, fc, testParams())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Succeeded)
	require.Len(t, fc.sent, 1)
	tx := fc.sent[0]
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, dest, *tx.To())
	// feeCap = 2*baseFee + tip
	assert.Equal(t, big.NewInt(2_500_000_000), tx.GasFeeCap())
}
