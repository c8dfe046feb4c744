package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

// probeEndpoints tries each URL in order and returns the first one that
// answers a current-block-height query. All endpoints dead is fatal.
func probeEndpoints(urls []string, throttle time.Duration) (string, error) {
	var lastErr error
	for _, u := range urls {
		client, err := sweepcore.Dial(u, throttle)
		if err != nil {
			lastErr = err
			warnLine("endpoint %s: %v", u, err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = client.BlockNumber(ctx)
		cancel()
		client.Close()
		if err != nil {
			lastErr = err
			warnLine("endpoint %s: %v", u, err)
			continue
		}
		return u, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints given")
	}
	return "", fmt.Errorf("no working RPC endpoint among [%s]: %w", strings.Join(urls, ", "), lastErr)
}
