package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledgerleaf/payeewise/internal/model"
	"github.com/schollz/progressbar/v3"
)

// NewProgressBar creates the standard progress bar used by long-running
// commands.
func NewProgressBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// RenderSuggestions formats freshly resolved suggestions as a summary block
// followed by one line per transaction.
func RenderSuggestions(suggestions []model.Suggestion) string {
	if len(suggestions) == 0 {
		return SubtleStyle.Render("No suggestions produced.")
	}

	var resolved, skipped, retryable int
	for i := range suggestions {
		s := &suggestions[i]
		switch {
		case s.Retryable():
			retryable++
		case s.Payee.Status == model.StatusSkipped:
			skipped++
		default:
			resolved++
		}
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Suggestions"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s resolved, %s already canonical, %s need retry\n\n",
		SuccessStyle.Render(fmt.Sprintf("%d", resolved)),
		SubtleStyle.Render(fmt.Sprintf("%d", skipped)),
		WarningStyle.Render(fmt.Sprintf("%d", retryable))))

	for i := range suggestions {
		b.WriteString(renderSuggestionLine(&suggestions[i]))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSuggestionLine(s *model.Suggestion) string {
	raw := BoldStyle.Render(s.RawPayeeName)

	if s.Retryable() {
		return fmt.Sprintf("  %s %s", ErrorStyle.Render("✗"), raw)
	}

	payee := s.Payee.ProposedName
	if s.Payee.Status == model.StatusSkipped {
		payee = SubtleStyle.Render(payee + " (unchanged)")
	}

	category := s.Category.ProposedName
	if category == "" {
		category = WarningStyle.Render("uncategorized")
	}

	return fmt.Sprintf("  %s %s → %s · %s %s",
		SuccessStyle.Render("✓"),
		raw,
		payee,
		category,
		SubtleStyle.Render(fmt.Sprintf("(%.0f%%)", s.Category.Confidence*100)))
}

// RenderClusters formats merge clusters largest-first, one box per cluster.
func RenderClusters(clusters []model.PayeeMergeCluster) string {
	if len(clusters) == 0 {
		return SubtleStyle.Render("No merge candidates found.")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%d merge clusters", len(clusters))))
	b.WriteString("\n")

	for _, c := range clusters {
		names := make([]string, len(c.Payees))
		for i, p := range c.Payees {
			names[i] = p.Name
		}
		header := BoldStyle.Render(fmt.Sprintf("%d payees", len(c.Payees))) +
			SubtleStyle.Render("  "+c.ClusterID)
		b.WriteString(BoxStyle.Render(header + "\n" + strings.Join(names, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderStaleClusters annotates cached clusters with their staleness status.
func RenderStaleClusters(clusters []model.PayeeMergeCluster, status model.ClusterCacheStatus) string {
	var b strings.Builder
	if status.Stale {
		b.WriteString(WarningStyle.Render("Cached clusters are stale"))
		if len(status.StalePayeeIDs) > 0 {
			b.WriteString(SubtleStyle.Render(fmt.Sprintf(" (%d payees changed)", len(status.StalePayeeIDs))))
		}
		b.WriteString("\n\n")
	}
	b.WriteString(RenderClusters(clusters))
	return b.String()
}
