package auditlog

import (
	"encoding/csv"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

func sample(outcome sweepcore.Outcome, detail string) sweepcore.Result {
	r := sweepcore.Result{
		Address:       "0x1111111111111111111111111111111111111111",
		BalanceBefore: big.NewInt(2_500_000_000_000_000),
		Outcome:       outcome,
		Detail:        detail,
		Timestamp:     time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	if outcome == sweepcore.OutcomeSucceeded {
		r.AmountSent = big.NewInt(2_437_000_000_000_000)
	}
	return r
}

func TestWriterJSONL(t *testing.T) {
	dir := t.TempDir()
	jsonl := filepath.Join(dir, "audit.jsonl")
	w, err := Open(jsonl, "")
	require.NoError(t, err)
	require.NotEmpty(t, w.RunID())

	require.NoError(t, w.Append(sample(sweepcore.OutcomeSucceeded, "0xabc123")))
	require.NoError(t, w.Append(sample(sweepcore.OutcomeFailed, "rpc_timeout: context deadline exceeded")))
	require.NoError(t, w.Append(sample(sweepcore.OutcomeSkipped, sweepcore.SkipBelowThreshold)))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(jsonl)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, w.RunID(), rec.RunID)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, "0xabc123", rec.TxHash)
	assert.Equal(t, "2500000000000000", rec.Balance)
	assert.Equal(t, "2437000000000000", rec.Amount)
	assert.Equal(t, "2025-04-01T12:00:00Z", rec.Timestamp)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "failed", rec.Status)
	assert.Empty(t, rec.TxHash)
	assert.Contains(t, rec.Detail, "rpc_timeout")

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, "skipped", rec.Status)
	assert.Equal(t, sweepcore.SkipBelowThreshold, rec.Detail)
}

func TestWriterCSVOnlySuccesses(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "transactions.csv")
	w, err := Open("", csvPath)
	require.NoError(t, err)

	require.NoError(t, w.Append(sample(sweepcore.OutcomeSucceeded, "0xabc123")))
	require.NoError(t, w.Append(sample(sweepcore.OutcomeFailed, "boom")))
	require.NoError(t, w.Close())

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one success row")
	assert.Equal(t, []string{"address", "balance", "sent", "txHash"}, rows[0])
	assert.Equal(t, "0x1111111111111111111111111111111111111111", rows[1][0])
	assert.Equal(t, "0.002500", rows[1][1])
	assert.Equal(t, "0.002437", rows[1][2])
	assert.Equal(t, "0xabc123", rows[1][3])
}

func TestWriterAppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	jsonl := filepath.Join(dir, "audit.jsonl")

	w1, err := Open(jsonl, "")
	require.NoError(t, err)
	require.NoError(t, w1.Append(sample(sweepcore.OutcomeSucceeded, "0x01")))
	require.NoError(t, w1.Close())

	w2, err := Open(jsonl, "")
	require.NoError(t, err)
	require.NoError(t, w2.Append(sample(sweepcore.OutcomeSucceeded, "0x02")))
	require.NoError(t, w2.Close())

	data, err := os.ReadFile(jsonl)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.NotEqual(t, w1.RunID(), w2.RunID())
}
