package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"tube-transcriber/internal/domain"
)

// SummaryLines renders the end-of-run summary one line at a time.
func SummaryLines(rep domain.RunReport) []string {
	lines := []string{
		strings.Repeat("=", 50),
		"BATCH PROCESSING COMPLETE",
		fmt.Sprintf("✓ Successful: %d", rep.SuccessCount()),
		fmt.Sprintf("✗ Failed: %d", rep.FailureCount()),
	}
	if skipped := rep.Skipped(); skipped > 0 {
		lines = append(lines, fmt.Sprintf("- Not attempted: %d", skipped))
	}
	if rep.Cancelled {
		lines = append(lines, "Run was cancelled before all videos were processed")
	}
	if rep.CombinedPath != "" {
		lines = append(lines, fmt.Sprintf("Combined transcript: %s", filepath.Base(rep.CombinedPath)))
	}

	failed := rep.Failed()
	if len(failed) > 0 {
		lines = append(lines, "", "Failed videos:")
		lines = append(lines, lo.Map(failed, func(o domain.ItemOutcome, _ int) string {
			return fmt.Sprintf("  - %s: %s", o.Reference, o.Error)
		})...)
	}
	return lines
}

// Summary renders the end-of-run summary as one block of text.
func Summary(rep domain.RunReport) string {
	return strings.Join(SummaryLines(rep), "\n")
}

// Headline is a one-line count suitable for notifications and tool results.
func Headline(rep domain.RunReport) string {
	head := fmt.Sprintf("%d succeeded, %d failed", rep.SuccessCount(), rep.FailureCount())
	if skipped := rep.Skipped(); skipped > 0 {
		head += fmt.Sprintf(", %d not attempted", skipped)
	}
	if rep.OutcomeDir() != "" {
		head += fmt.Sprintf(" (files saved to %s)", rep.OutcomeDir())
	}
	return head
}

// TranscriptPaths lists every artifact the run produced, combined file last.
func TranscriptPaths(rep domain.RunReport) []string {
	paths := lo.FilterMap(rep.Outcomes, func(o domain.ItemOutcome, _ int) (string, bool) {
		return o.TranscriptPath, o.Succeeded() && o.TranscriptPath != ""
	})
	if rep.CombinedPath != "" {
		paths = append(paths, rep.CombinedPath)
	}
	return paths
}
