// Package auditlog persists per-account sweep outcomes: an append-only
// JSON-lines file for machines and a transactions CSV for spreadsheets.
package auditlog

import (
	"encoding/csv"
	"encoding/json"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

// Record is one JSONL line. Amounts are decimal wei strings so no
// precision is lost crossing the JSON boundary.
type Record struct {
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
}

// Writer appends sweep results to the configured files. Safe for
// concurrent use by partitioned runs.
type Writer struct {
	mu    sync.Mutex
	runID string
	jsonl *os.File
	csvF  *os.File
	csvW  *csv.Writer
}

// Open creates a Writer. Either path may be empty to disable that output.
// The CSV gets a header row when freshly created.
func Open(jsonlPath, csvPath string) (*Writer, error) {
	w := &Writer{runID: uuid.NewString()}
	if jsonlPath != "" {
		f, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w.jsonl = f
	}
	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			if w.jsonl != nil {
				_ = w.jsonl.Close()
			}
			return nil, err
		}
		w.csvF = f
		w.csvW = csv.NewWriter(f)
		_ = w.csvW.Write([]string{"address", "balance", "sent", "txHash"})
	}
	return w, nil
}

// RunID identifies this run in every JSONL record.
func (w *Writer) RunID() string { return w.runID }

// Append writes one result to all enabled outputs.
func (w *Writer) Append(r sweepcore.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.jsonl != nil {
		rec := Record{
			RunID:     w.runID,
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			Address:   r.Address,
			Balance:   bigStr(r.BalanceBefore),
			Amount:    bigStr(r.AmountSent),
			Status:    string(r.Outcome),
		}
		if r.Outcome == sweepcore.OutcomeSucceeded {
			rec.TxHash = r.Detail
		} else {
			rec.Detail = r.Detail
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := w.jsonl.Write(append(b, '\n')); err != nil {
			return err
		}
	}

	if w.csvW != nil && r.Outcome == sweepcore.OutcomeSucceeded {
		if err := w.csvW.Write([]string{
			r.Address,
			sweepcore.FmtETH(r.BalanceBefore),
			sweepcore.FmtETH(r.AmountSent),
			r.Detail,
		}); err != nil {
			return err
		}
		w.csvW.Flush()
	}
	return nil
}

// Close flushes and releases the files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var first error
	if w.csvW != nil {
		w.csvW.Flush()
		if err := w.csvW.Error(); err != nil && first == nil {
			first = err
		}
	}
	if w.csvF != nil {
		if err := w.csvF.Close(); err != nil && first == nil {
			first = err
		}
	}
	if w.jsonl != nil {
		if err := w.jsonl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func bigStr(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
