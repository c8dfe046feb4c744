package sweepcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// PartitionAccounts splits accounts into n contiguous, disjoint groups
// that together cover the input. Fewer than n groups come back when there
// are not enough accounts to go around.
func PartitionAccounts(accounts []Account, n int) [][]Account {
	if n < 1 {
		n = 1
	}
	if n > len(accounts) {
		n = len(accounts)
	}
	if n <= 1 {
		if len(accounts) == 0 {
			return nil
		}
		return [][]Account{accounts}
	}
	out := make([][]Account, 0, n)
	size := len(accounts) / n
	rem := len(accounts) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out = append(out, accounts[start:end])
		start = end
	}
	return out
}

// ClientFactory opens a fresh connection for one partition. Partitions
// never share a client, so there is no shared mutable connection state.
type ClientFactory func() (ChainClient, error)

// RunPartitioned fans the account list out over n independent workers and
// merges their summaries. Aggregate totals equal a sequential run over
// the same list; only ordering differs.
func RunPartitioned(ctx context.Context, accounts []Account, dest common.Address, factory ClientFactory, p Params, n int) (*Summary, error) {
	parts := PartitionAccounts(accounts, n)
	if len(parts) <= 1 {
		client, err := factory()
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		defer client.Close()
		return Run(ctx, accounts, dest, client, p)
	}

	sums := make([]*Summary, len(parts))
	errs := make([]error, len(parts))
	var wg sync.WaitGroup
	for i, part := range parts {
		wg.Add(1)
		go func(i int, part []Account) {
			defer wg.Done()
			client, err := factory()
			if err != nil {
				errs[i] = fmt.Errorf("partition %d dial: %w", i, err)
				return
			}
			defer client.Close()
			sums[i], errs[i] = Run(ctx, part, dest, client, p)
		}(i, part)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return MergeSummaries(sums...), nil
}
