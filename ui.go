package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/duoreadme/duoreadme/chunker"
	"github.com/duoreadme/duoreadme/i18n"
	"github.com/duoreadme/duoreadme/router"
)

// stderr carries every user-facing line; stdout is kept for data
// (config show, preview).
var (
	stderr      = lipgloss.NewRenderer(os.Stderr)
	infoTag     = stderr.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	successTag  = stderr.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warningTag  = stderr.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorTag    = stderr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingText = stderr.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	mutedText   = stderr.NewStyle().Faint(true)
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, infoTag.Render("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, successTag.Render("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, warningTag.Render("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, errorTag.Render("[ERROR]")+" "+format+"\n", args...)
}

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// progressBar renders e.g. "[████░░░░]  50%".
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]" + fmt.Sprintf(" %3d%%", percent)
}

// batchProgress reports batch completion, redrawing one line on a terminal.
func batchProgress(done, total int) {
	line := fmt.Sprintf("%s %s", progressBar(done*100/total, 20), fmt.Sprintf(i18n.T("batch %d of %d"), done, total))
	if !stderrIsTerminal() {
		logInfo("%s", line)
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s", line)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func rule(w io.Writer) {
	fmt.Fprintln(w, mutedText.Render(strings.Repeat("─", 60)))
}

// printPlan shows how project text would be split for submission.
func printPlan(w io.Writer, plan []chunker.Batch, limit int) {
	fmt.Fprintln(w, headingText.Render(i18n.T("Submission plan")))
	rule(w)
	for _, b := range plan {
		marker := ""
		if b.Len() > limit {
			marker = " " + warningTag.Render(i18n.T("(oversized section)"))
		}
		fmt.Fprintf(w, "  %3d  %10s  %s%s\n", b.Index, humanBytes(b.Len()),
			fmt.Sprintf(i18n.N("%d section", "%d sections", b.Sections), b.Sections), marker)
	}
	rule(w)
	fmt.Fprintf(w, i18n.N("%d batch", "%d batches", len(plan))+"\n", len(plan))
}

// printSummary lists saved and failed documents. Documents without any
// Markdown heading are flagged, since a generator that returned plain prose
// usually misunderstood the request.
func printSummary(w io.Writer, report *router.Report, pruned []string, rawPath string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingText.Render(i18n.T("Generation summary")))
	rule(w)

	if len(report.Saved) > 0 {
		fmt.Fprintf(w, i18n.N("%d file saved:", "%d files saved:", len(report.Saved))+"\n", len(report.Saved))
	}
	var untitled []string
	for _, a := range report.Saved {
		where := i18n.T("secondary")
		if a.Promoted {
			where = i18n.T("promoted")
		}
		outline := router.Inspect(a.Content)
		title := outline.Title
		if outline.Headings == 0 {
			untitled = append(untitled, a.Path)
			title = i18n.T("(no heading)")
		}
		fmt.Fprintf(w, "  %s %-28s %-8s %10s  %s\n", successTag.Render("✓"), a.Path, a.Code, humanBytes(a.Size),
			mutedText.Render(where+" · "+title))
	}

	if rawPath != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedText.Render("•"), rawPath)
	}

	if len(report.Failed) > 0 {
		fmt.Fprintf(w, i18n.N("%d file failed:", "%d files failed:", len(report.Failed))+"\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Fprintf(w, "  %s %-28s %-8s %s\n", errorTag.Render("✗"), f.Path, f.Code, f.Err)
		}
	}

	for _, p := range pruned {
		fmt.Fprintf(w, "  %s %s\n", warningTag.Render("-"), fmt.Sprintf(i18n.T("removed %s"), p))
	}

	if len(report.Saved) == 0 && len(report.Failed) == 0 {
		fmt.Fprintln(w, i18n.T("No files were generated."))
	}
	rule(w)

	for _, p := range untitled {
		fmt.Fprintf(w, "%s %s\n", warningTag.Render("[WARN]"), fmt.Sprintf(i18n.T("%s has no Markdown heading"), p))
	}
}
