package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ligun0805/eth-sweeper/internal/auditlog"
	"github.com/ligun0805/eth-sweeper/internal/config"
	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()
	applyFlags(&cfg)

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger.Sugar()); err != nil {
		logger.Sugar().Errorw("fatal", "err", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// applyFlags lets the command line override env/.env values.
func applyFlags(cfg *config.Settings) {
	rpcCSV := flag.String("rpc", strings.Join(cfg.RPCURLs, ","), "Comma-separated RPC endpoint URLs, tried in order")
	flag.StringVar(&cfg.KeysFile, "keys", cfg.KeysFile, "File with one hex private key per line")
	flag.StringVar(&cfg.TargetFile, "target-file", cfg.TargetFile, "File holding the destination address")
	flag.StringVar(&cfg.TargetAddress, "target", cfg.TargetAddress, "Destination address (overrides -target-file)")
	flag.Int64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "Chain ID (0 = query the node)")
	flag.IntVar(&cfg.Partitions, "partitions", cfg.Partitions, "Parallel partition count")
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Decide amounts but do not broadcast")
	flag.Parse()
	cfg.RPCURLs = nil
	for _, u := range strings.Split(*rpcCSV, ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.RPCURLs = append(cfg.RPCURLs, u)
		}
	}
}

func run(cfg config.Settings, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Destination first: loading accounts needs it to filter self-sends.
	var destHex string
	if cfg.TargetAddress != "" {
		destHex = cfg.TargetAddress
	} else {
		b, err := os.ReadFile(cfg.TargetFile)
		if err != nil {
			return fmt.Errorf("target address: %w", err)
		}
		destHex = string(b)
	}
	dest, err := sweepcore.ParseDestination(destHex)
	if err != nil {
		return err
	}

	accounts, err := sweepcore.LoadAccounts(cfg.KeysFile, dest)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	log.Infow("loaded", "accounts", len(accounts), "destination", dest.Hex())

	// Pick the first endpoint that answers a block-height probe.
	rpcURL, err := probeEndpoints(cfg.RPCURLs, cfg.TxDelay)
	if err != nil {
		return err
	}
	log.Infow("connected", "endpoint", rpcURL)
	okLine("Connected to %s", rpcURL)

	audit, err := auditlog.Open(cfg.AuditJSONL, cfg.TxCSV)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer audit.Close()
	log.Infow("audit", "run_id", audit.RunID(), "jsonl", cfg.AuditJSONL, "csv", cfg.TxCSV)

	if !cfg.DryRun && !confirmLiveRun(len(accounts), dest.Hex()) {
		return fmt.Errorf("aborted by user")
	}

	// SIGINT stops starting new accounts; in-flight txs cannot be recalled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := sweepcore.ReservePolicy{
		MinBalance:   cfg.MinBalanceWei,
		InclusiveMin: cfg.MinInclusive,
	}
	if cfg.ReserveMode == "fixed" {
		policy.FixedReserve = cfg.ReserveWei
	}
	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	reporter := newConsoleReporter(len(accounts), audit, log)
	params := sweepcore.Params{
		ChainID:        chainID,
		GasUnits:       cfg.GasUnits,
		BufferPct:      cfg.FeeBufferPct,
		Policy:         policy,
		ConfirmTimeout: cfg.ConfirmTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		TxDelay:        cfg.TxDelay,
		DryRun:         cfg.DryRun,
		Logf:           reporter.Logf,
		OnResult:       reporter.Result,
	}
	factory := func() (sweepcore.ChainClient, error) {
		return sweepcore.Dial(rpcURL, cfg.TxDelay/4)
	}

	start := time.Now()
	summary, err := sweepcore.RunPartitioned(ctx, accounts, dest, factory, params, cfg.Partitions)
	if err != nil {
		return err
	}

	reporter.Summary(summary, time.Since(start))
	log.Infow("run complete",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"moved_wei", summary.TotalMoved.String(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	// Individual account failures do not fail the process.
	return nil
}
