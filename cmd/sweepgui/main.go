package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/joho/godotenv"

	"github.com/ligun0805/eth-sweeper/internal/auditlog"
	"github.com/ligun0805/eth-sweeper/internal/config"
	"github.com/ligun0805/eth-sweeper/internal/sweepcore"
)

// --- UI globals shared between the builder and the run goroutine ---
var (
	logBox    *widget.Entry
	logScroll *container.Scroll
	progBar   *widget.ProgressBar
	progLbl   *widget.Label
	statsLbl  *widget.Label

	runCtx    context.Context
	runCancel context.CancelFunc
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()

	a := app.New()
	w := a.NewWindow("ETH Sweeper")
	w.Resize(fyne.NewSize(920, 720))

	rpcEntry := widget.NewEntry()
	rpcEntry.SetText(strings.Join(cfg.RPCURLs, ","))
	keysEntry := widget.NewEntry()
	keysEntry.SetText(cfg.KeysFile)
	targetEntry := widget.NewEntry()
	targetEntry.SetText(defaultStr(cfg.TargetAddress, ""))
	targetEntry.SetPlaceHolder("0x… (empty = read " + cfg.TargetFile + ")")
	minEntry := widget.NewEntry()
	minEntry.SetText(sweepcore.FmtETH(cfg.MinBalanceWei))
	bufferEntry := widget.NewEntry()
	bufferEntry.SetText(strconv.FormatInt(cfg.FeeBufferPct, 10))
	dryCheck := widget.NewCheck("Dry run (no broadcast)", nil)
	dryCheck.SetChecked(cfg.DryRun)

	settingsCard := widget.NewCard("Settings", "", widget.NewForm(
		widget.NewFormItem("RPC URLs", rpcEntry),
		widget.NewFormItem("Keys file", keysEntry),
		widget.NewFormItem("Target", targetEntry),
		widget.NewFormItem("Min balance (ETH)", minEntry),
		widget.NewFormItem("Fee buffer %", bufferEntry),
		widget.NewFormItem("", dryCheck),
	))

	progBar = widget.NewProgressBar()
	progLbl = widget.NewLabel("0/0")
	statsLbl = widget.NewLabel("✓ 0   ✗ 0   ! 0   moved 0 ETH")

	logBox = widget.NewMultiLineEntry()
	logBox.Disable()
	logBox.Wrapping = fyne.TextWrapWord
	logScroll = container.NewVScroll(logBox)
	logScroll.SetMinSize(fyne.NewSize(860, 360))

	var startBtn, stopBtn *widget.Button
	startBtn = widget.NewButton("🚀 Start Sweeping", func() {
		startBtn.Disable()
		stopBtn.Enable()
		cfg.KeysFile = strings.TrimSpace(keysEntry.Text)
		cfg.TargetAddress = strings.TrimSpace(targetEntry.Text)
		cfg.RPCURLs = splitCSV(rpcEntry.Text)
		cfg.MinBalanceWei = config.EtherToWei(minEntry.Text)
		cfg.FeeBufferPct = atoi64(bufferEntry.Text, cfg.FeeBufferPct)
		cfg.DryRun = dryCheck.Checked
		go func() {
			defer func() {
				startBtn.Enable()
				stopBtn.Disable()
			}()
			if err := runSweep(cfg); err != nil {
				appendLog("Fatal: " + err.Error())
			}
		}()
	})
	stopBtn = widget.NewButton("Stop", func() {
		if runCancel != nil {
			runCancel()
			appendLog("STOP pressed — finishing current wallet")
		}
	})
	stopBtn.Disable()

	top := container.NewVBox(
		settingsCard,
		container.NewGridWithColumns(2, startBtn, stopBtn),
		container.NewBorder(nil, nil, widget.NewLabel("Progress:"), progLbl, progBar),
		statsLbl,
	)
	w.SetContent(container.NewBorder(top, nil, nil, nil, logScroll))
	w.ShowAndRun()
}

// runSweep mirrors the CLI flow minus the terminal bits: probe, load,
// sweep, log. Runs off the UI thread; widget updates go through helpers.
func runSweep(cfg config.Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	destHex := cfg.TargetAddress
	if destHex == "" {
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
		return err
	}

	var client sweepcore.ChainClient
	var rpcURL string
	for _, u := range cfg.RPCURLs {
		c, err := sweepcore.Dial(u, cfg.TxDelay/4)
		if err != nil {
			appendLog(fmt.Sprintf("endpoint %s: %v", u, err))
			continue
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = c.BlockNumber(probeCtx)
		cancel()
		if err != nil {
			c.Close()
			appendLog(fmt.Sprintf("endpoint %s: %v", u, err))
			continue
		}
		client, rpcURL = c, u
		break
	}
	if client == nil {
		return fmt.Errorf("no working RPC endpoint")
	}
	defer client.Close()
	appendLog("✓ Connected to " + rpcURL)
	appendLog(fmt.Sprintf("Sweeping %d wallets into %s", len(accounts), dest.Hex()))

	audit, err := auditlog.Open(cfg.AuditJSONL, cfg.TxCSV)
	if err != nil {
		return err
	}
	defer audit.Close()

	runCtx, runCancel = context.WithCancel(context.Background())
	defer runCancel()

	total := len(accounts)
	setProgress(0, total)
	sum := sweepcore.NewSummary()

	policy := sweepcore.ReservePolicy{MinBalance: cfg.MinBalanceWei, InclusiveMin: cfg.MinInclusive}
	if cfg.ReserveMode == "fixed" {
		policy.FixedReserve = cfg.ReserveWei
	}
	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	done := 0
	params := sweepcore.Params{
		ChainID:        chainID,
		GasUnits:       cfg.GasUnits,
		BufferPct:      cfg.FeeBufferPct,
		Policy:         policy,
		ConfirmTimeout: cfg.ConfirmTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		TxDelay:        cfg.TxDelay,
		DryRun:         cfg.DryRun,
		Logf:           func(f string, a ...any) { appendLog(fmt.Sprintf(f, a...)) },
		OnResult: func(r sweepcore.Result) {
			sum.Add(r)
			done++
			setProgress(done, total)
			setStats(sum)
			_ = audit.Append(r)
		},
	}

	start := time.Now()
	final, err := sweepcore.Run(runCtx, accounts, dest, client, params)
	if err != nil {
		return err
	}
	appendLog("=== Sweep Summary ===")
	appendLog(fmt.Sprintf("Total: %d  Succeeded: %d  Failed: %d  Skipped: %d",
		final.Total(), final.Succeeded, final.Failed, final.Skipped))
	appendLog(fmt.Sprintf("ETH moved: %s  Time: %.2fs", sweepcore.FmtETH(final.TotalMoved), time.Since(start).Seconds()))
	return nil
}

// appendLog adds a timestamped line to the log pane.
func appendLog(s string) {
	logBox.SetText(logBox.Text + time.Now().Format("15:04:05 ") + s + "\n")
	if logScroll != nil {
		logScroll.ScrollToBottom()
	}
}

func setProgress(done, total int) {
	progBar.Min = 0
	progBar.Max = float64(total)
	progBar.SetValue(float64(done))
	progLbl.SetText(fmt.Sprintf("%d/%d", done, total))
}

func setStats(s *sweepcore.Summary) {
	statsLbl.SetText(fmt.Sprintf("✓ %d   ✗ %d   ! %d   moved %s ETH",
		s.Succeeded, s.Failed, s.Skipped, sweepcore.FmtETH(s.TotalMoved)))
}

func defaultStr(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoi64(s string, d int64) int64 {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n
	}
	return d
}
