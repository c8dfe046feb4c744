package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Settings keeps all configuration options for a sweep run.
// Env keys are accepted in both UPPER_CASE and lower_case.
type Settings struct {
	RPCURLs        []string
	ChainID        int64 // 0 = ask the node
	KeysFile       string
	TargetFile     string
	TargetAddress  string // inline override for TargetFile
	MinBalanceWei  *big.Int
	MinInclusive   bool   // true: balance exactly at the threshold is processed
	ReserveMode    string // "fee" or "fixed"
	ReserveWei     *big.Int
	GasUnits       uint64
	FeeBufferPct   int64
	TxDelay        time.Duration
	ConfirmTimeout time.Duration
	RetryAttempts  int
	Partitions     int
	AuditJSONL     string
	TxCSV          string
	DryRun         bool
}

// Load reads settings from environment supporting both UPPER_CASE and
// lower_case keys. Malformed numeric values fall back to defaults;
// structural problems surface via Validate.
func Load() Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
		return def
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	splitCSV := func(s string) []string {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	st := Settings{}
	st.RPCURLs = splitCSV(get([]string{"rpc_urls", "RPC_URLS", "rpc_url", "RPC_URL"}, ""))
	st.ChainID = getInt64([]string{"chain_id", "CHAIN_ID"}, 0)
	st.KeysFile = get([]string{"keys_file", "KEYS_FILE"}, "private_keys.txt")
	st.TargetFile = get([]string{"target_file", "TARGET_FILE"}, "target_address.txt")
	st.TargetAddress = get([]string{"target_address", "TARGET_ADDRESS"}, "")

	st.MinBalanceWei = EtherToWei(get([]string{"min_balance_eth", "MIN_BALANCE_ETH"}, "0"))
	st.MinInclusive = getBool([]string{"min_inclusive", "MIN_INCLUSIVE"}, true)
	st.ReserveMode = strings.ToLower(get([]string{"reserve_mode", "RESERVE_MODE"}, "fee"))
	st.ReserveWei = EtherToWei(get([]string{"reserve_eth", "RESERVE_ETH"}, "0"))

	st.GasUnits = uint64(getInt64([]string{"gas_units", "GAS_UNITS"}, 21000))
	st.FeeBufferPct = getInt64([]string{"fee_buffer_pct", "FEE_BUFFER_PCT"}, 20)
	st.TxDelay = time.Duration(getInt([]string{"tx_delay_ms", "TX_DELAY_MS"}, 0)) * time.Millisecond
	st.ConfirmTimeout = time.Duration(getInt([]string{"confirm_timeout_s", "CONFIRM_TIMEOUT_S"}, 180)) * time.Second
	st.RetryAttempts = getInt([]string{"retry_attempts", "RETRY_ATTEMPTS"}, 3)
	st.Partitions = getInt([]string{"partitions", "PARTITIONS"}, 1)
	st.AuditJSONL = get([]string{"audit_jsonl", "AUDIT_JSONL"}, "sweep_audit.jsonl")
	st.TxCSV = get([]string{"tx_csv", "TX_CSV"}, "transactions.csv")
	st.DryRun = getBool([]string{"dry_run", "DRY_RUN"}, false)

	return st
}

// Validate rejects settings no run can start with.
func (s Settings) Validate() error {
	if len(s.RPCURLs) == 0 {
		return fmt.Errorf("no RPC endpoints configured (set RPC_URLS)")
	}
	if s.ReserveMode != "fee" && s.ReserveMode != "fixed" {
		return fmt.Errorf("reserve_mode must be \"fee\" or \"fixed\", got %q", s.ReserveMode)
	}
	if s.MinBalanceWei == nil {
		return fmt.Errorf("min_balance_eth must be a non-negative amount")
	}
	if s.ReserveMode == "fixed" && (s.ReserveWei == nil || s.ReserveWei.Sign() <= 0) {
		return fmt.Errorf("reserve_mode=fixed needs a positive reserve_eth")
	}
	if s.GasUnits == 0 {
		return fmt.Errorf("gas_units must be positive")
	}
	if s.Partitions < 1 {
		return fmt.Errorf("partitions must be at least 1")
	}
	return nil
}

// EtherToWei converts a human-denominated amount ("0.0015") to wei.
// Returns nil on unparseable or negative input; sub-wei digits truncate.
func EtherToWei(s string) *big.Int {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return nil
	}
	return d.Mul(decimal.New(1, 18)).Truncate(0).BigInt()
}
