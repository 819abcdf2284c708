package orchestrator

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/solveiti/trgscout/internal/types"
)

// NewProgressBar builds a per-run progress bar over total stores, rendered
// only when stdout is an interactive terminal; otherwise it no-ops so piped
// or CI output stays clean.
func NewProgressBar(total int) *progressbar.ProgressBar {
	if total <= 0 || !isatty.IsTerminal(os.Stdout.Fd()) {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("scraping stores"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// PrintSummary renders the RunReport as a colorized terminal summary (spec
// §4.6 step 6). Colors follow fatih/color's global setting, which is off
// when stdout (not w) is not a terminal.
func PrintSummary(w io.Writer, report types.RunReport) {
	width := terminalWidth()

	headline := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)

	rule := func() { fmt.Fprintln(w, dashes(width)) }

	rule()
	headline.Fprintf(w, "trgscout run summary (%s, run_id=%s)\n", report.Mode, report.RunID)
	rule()

	fmt.Fprintf(w, "duration:       %s\n", report.Duration().Round(1e9))
	if report.SitemapIngested && report.Ingest != nil {
		fmt.Fprintf(w, "sitemap ingest: discovered=%d inserted=%d skipped=%d\n",
			report.Ingest.Discovered, report.Ingest.Inserted, report.Ingest.Skipped)
	}
	fmt.Fprintf(w, "visited:        %d\n", report.Visited)
	fmt.Fprintf(w, "valid:          %d\n", report.Valid)
	fmt.Fprintf(w, "auto-moto:      %d\n", report.AutoMoto)
	fmt.Fprintf(w, "new vehicles:   %d\n", report.NewTotal)
	fmt.Fprintf(w, "used vehicles:  %d\n", report.UsedTotal)
	fmt.Fprintf(w, "test vehicles:  %d\n", report.TestTotal)

	rule()
	switch {
	case report.Aborted:
		bad.Fprintf(w, "run aborted: %s\n", report.AbortReason)
	case report.Valid < report.Visited:
		warn.Fprintf(w, "completed with %d invalid visit(s)\n", report.Visited-report.Valid)
	default:
		ok.Fprintln(w, "completed")
	}
}

func terminalWidth() int {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return 60
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 60
	}
	if width > 100 {
		width = 100
	}
	return width
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}
