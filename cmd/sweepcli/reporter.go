package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ligun0805/eth-sweeper/internal/auditlog"
	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

var (
	okC   = color.New(color.FgGreen)
	errC  = color.New(color.FgRed)
	warnC = color.New(color.FgYellow)
	infC  = color.New(color.FgCyan)
)

func okLine(format string, a ...any)   { okC.Printf("[✓] "+format+"\n", a...) }
func warnLine(format string, a ...any) { warnC.Printf("[!] "+format+"\n", a...) }

// consoleReporter consumes orchestrator events: prints colored progress
// lines and forwards every result to the audit writer. Safe for use from
// several partitions at once.
type consoleReporter struct {
	mu    sync.Mutex
	total int
	done  int
	audit *auditlog.Writer
	log   *zap.SugaredLogger
}

func newConsoleReporter(total int, audit *auditlog.Writer, log *zap.SugaredLogger) *consoleReporter {
	return &consoleReporter{total: total, audit: audit, log: log}
}

// Logf receives the core's diagnostic lines as-is.
func (r *consoleReporter) Logf(format string, a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Printf(format+"\n", a...)
}

// Result prints one per-account outcome line and records it.
func (r *consoleReporter) Result(res sweepcore.Result) {
	r.mu.Lock()
	r.done++
	n := r.done
	r.mu.Unlock()

	short := sweepcore.ShortAddr(res.Address)
	switch res.Outcome {
	case sweepcore.OutcomeSucceeded:
		okC.Printf("[✓] (%d/%d) %s sent %s ETH  %s\n", n, r.total, short, sweepcore.FmtETH(res.AmountSent), res.Detail)
	case sweepcore.OutcomeSkipped:
		warnC.Printf("[!] (%d/%d) %s skipped: %s\n", n, r.total, short, res.Detail)
	case sweepcore.OutcomeFailed:
		errC.Printf("[✗] (%d/%d) %s failed (%s): %s\n", n, r.total, short, res.ErrorKind, res.Detail)
		r.log.Warnw("account failed", "address", res.Address, "kind", string(res.ErrorKind), "detail", res.Detail)
	}

	if r.audit != nil {
		if err := r.audit.Append(res); err != nil {
			r.log.Warnw("audit append failed", "err", err)
		}
	}
}

// Summary prints the closing tally. Printed even when every account failed.
func (r *consoleReporter) Summary(s *sweepcore.Summary, elapsed time.Duration) {
	infC.Println("\n=== Sweep Summary ===")
	fmt.Printf("Total wallets : %d\n", s.Total())
	okC.Printf("Succeeded     : %d\n", s.Succeeded)
	errC.Printf("Failed        : %d\n", s.Failed)
	warnC.Printf("Skipped       : %d\n", s.Skipped)
	fmt.Printf("ETH moved     : %s\n", sweepcore.FmtETH(s.TotalMoved))
	fmt.Printf("Elapsed       : %.2fs\n", elapsed.Seconds())
}

// confirmLiveRun asks for an explicit go-ahead before broadcasting real
// transactions. Non-interactive runs (pipes, CI) proceed without asking.
func confirmLiveRun(accounts int, dest string) bool {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return true
	}
	warnLine("about to sweep %d wallets into %s", accounts, dest)
	fmt.Print("Proceed? [y/N] ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
