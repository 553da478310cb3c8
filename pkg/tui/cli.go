// Package tui renders run headers, progress and summaries for the terminal.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/sweep/pkg/replay"
	"github.com/logflow/sweep/pkg/report"
	"github.com/logflow/sweep/pkg/state"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

const rule = "  ─────────────────────────────────────"

// Header describes a run about to start.
type Header struct {
	Input       string
	Analysis    string
	Systematics bool
	Requested   int64
}

// PrintHeader prints the run header.
func PrintHeader(w io.Writer, h Header) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  SWEEP")+mutedStyle.Render(" event replay"))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Input:"), titleStyle.Render(h.Input))
	if h.Analysis != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Analysis:"), titleStyle.Render(h.Analysis))
	}
	events := "all"
	if h.Requested >= 0 {
		events = formatNumber(h.Requested)
	}
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(events))
	sweep := "nominal only"
	if h.Systematics {
		sweep = "recommended"
	}
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Variations:"), titleStyle.Render(sweep))
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintln(w)
}

// PrintVariations lists a variation set, one per line.
func PrintVariations(w io.Writer, names []string) {
	for i, name := range names {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%3d", i)), name)
	}
}

// Bar is a progress observer drawing a progress bar. The bar is sized
// from the first observation, so it can be built before the bound is known.
type Bar struct {
	w     io.Writer
	bar   *progressbar.ProgressBar
	bound int64
}

// NewBar creates a bar writing to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) start(bound int64) {
	b.bound = bound
	b.bar = progressbar.NewOptions64(bound,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription("  replaying"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Observe implements replay.Progress.
func (b *Bar) Observe(p replay.ProgressUpdate) {
	if b.bar == nil {
		b.start(p.Bound)
	}
	_ = b.bar.Set64(p.Index)
}

// Finish implements replay.Finisher. A run with no events drew no bar.
func (b *Bar) Finish(t replay.Throughput) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Set64(b.bound)
	_ = b.bar.Finish()
}

// PrintSummary prints the outcome of a run with its cutflow.
func PrintSummary(w io.Writer, s *report.Summary) {
	fmt.Fprintln(w)
	if s.Status == report.StatusCompleted {
		fmt.Fprintln(w, successStyle.Render("  ✓ RUN COMPLETE"))
	} else {
		fmt.Fprintln(w, accentStyle.Render("  ✗ RUN FAILED"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Events:"),
		titleStyle.Render(formatNumber(s.Processed)),
		mutedStyle.Render(fmt.Sprintf("of %s available", formatNumber(s.Available))))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Variations:"), titleStyle.Render(fmt.Sprintf("%d", len(s.Variations))))

	elapsed := time.Duration(s.ElapsedSeconds * float64(time.Second))
	if s.EventsPerSec > 0 {
		fmt.Fprintf(w, "  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(elapsed)),
			mutedStyle.Render(fmt.Sprintf("(%s events/sec)", formatNumber(int64(s.EventsPerSec)))))
	} else {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(elapsed)))
	}

	if s.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Error:"), accentStyle.Render(s.Error))
	}

	if len(s.Cutflow) > 0 {
		fmt.Fprintln(w)
		rows := [][]string{{"VARIATION", "SEEN", "PASSED", "SUM WEIGHTS"}}
		for _, c := range s.Cutflow {
			rows = append(rows, []string{
				c.Variation,
				fmt.Sprintf("%d", c.Seen),
				fmt.Sprintf("%d", c.Passed),
				fmt.Sprintf("%.4g", c.SumWeights),
			})
		}
		fmt.Fprint(w, table(rows))
	}
	fmt.Fprintln(w)
}

// PrintHistory prints recorded runs, newest first.
func PrintHistory(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no runs recorded"))
		return
	}

	rows := [][]string{{"ID", "STARTED", "STATUS", "EVENTS", "VARIATIONS", "EVENTS/SEC", "INPUT"}}
	for _, r := range runs {
		status := r.Status
		if r.Code != "" {
			status += " " + r.Code
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			formatNumber(r.Processed),
			fmt.Sprintf("%d", r.Variations),
			formatNumber(int64(r.EventsPerSec)),
			r.Input,
		})
	}
	fmt.Fprint(w, table(rows))
}

// table lays rows out in aligned columns; the first row is the header.
func table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(mutedStyle)
			}
			cells[i] = style.Render(cell)
		}
		sb.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n")
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
