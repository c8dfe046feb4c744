package sweepcore

import (
	"math/big"
	"time"
)

// Outcome of processing one account.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ErrorKind is a coarse class for failed accounts.
type ErrorKind string

const (
	ErrNone        ErrorKind = ""
	ErrNetwork     ErrorKind = "network"
	ErrTransaction ErrorKind = "transaction"
	ErrTimeout     ErrorKind = "timeout"
)

// Result is the final word on one account within a run. Exactly one
// Result is produced per loaded account.
type Result struct {
	Address       string
	BalanceBefore *big.Int
	AmountSent    *big.Int // nil unless succeeded
	Outcome       Outcome
	ErrorKind     ErrorKind
	Detail        string // tx hash, error message or skip reason
	Timestamp     time.Time
}

// Summary aggregates a run (or one partition of it).
type Summary struct {
	Succeeded  int
	Failed     int
	Skipped    int
	TotalMoved *big.Int
	Results    []Result
}

// NewSummary returns an empty summary with a zeroed mover counter.
func NewSummary() *Summary {
	return &Summary{TotalMoved: new(big.Int)}
}

// Add records one result into the tallies.
func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
		if r.AmountSent != nil {
			s.TotalMoved.Add(s.TotalMoved, r.AmountSent)
		}
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Total returns the number of accounts accounted for.
func (s *Summary) Total() int { return s.Succeeded + s.Failed + s.Skipped }

// MergeSummaries folds per-partition summaries into one by plain
// addition. Partitions are disjoint, so no conflicts are possible.
func MergeSummaries(parts ...*Summary) *Summary {
	out := NewSummary()
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.Succeeded += p.Succeeded
		out.Failed += p.Failed
		out.Skipped += p.Skipped
		out.TotalMoved.Add(out.TotalMoved, p.TotalMoved)
		out.Results = append(out.Results, p.Results...)
	}
	return out
}
