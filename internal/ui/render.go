package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/bookclean/internal/diff"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
)

// RenderSpans renders highlighted spans with tag styles layered over the diff marks.
//
// Removed spans get white on red, added spans white on green. Headings render bold and underlined.
func RenderSpans(spans []diff.Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(spanStyle(s).Render(s.Text))
	}
	return b.String()
}

func spanStyle(s diff.Span) lipgloss.Style {
	st := lipgloss.NewStyle()
	switch s.Mark {
	case diff.Removed:
		st = styles.removed
	case diff.Added:
		st = styles.added
	}
	if s.Style.Strong() {
		st = st.Bold(true)
	}
	if s.Style.Italic {
		st = st.Italic(true)
	}
	if s.Style.Heading > 0 {
		st = st.Underline(true)
	}
	return st
}

// RenderChange lays out the original and proposed text side by side within width columns.
func RenderChange(c models.Change, width int) string {
	result := diff.Highlight(c.Original, c.Proposed)
	paneWidth := max((width-4)/2, 20)

	left := styles.pane.Width(paneWidth).Render(styles.label.Render("Original") + "\n" + RenderSpans(result.Original))
	right := styles.pane.Width(paneWidth).Render(styles.label.Render("Proposed") + "\n" + RenderSpans(result.Proposed))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// RenderCounts is the one-line review tally.
func RenderCounts(c review.Counts) string {
	return fmt.Sprintf("%d pending · %d accepted · %d rejected · %d total", c.Pending, c.Accepted, c.Rejected, c.Total)
}

// RenderEmptyChapter shows a chapter with nothing left to review.
func RenderEmptyChapter(ch models.Chapter, counts review.Counts) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(ch.Name()))
	b.WriteString("\n")
	b.WriteString(styles.help.Render("Rating: " + ch.Rating.String()))
	b.WriteString("\n\n")
	if counts.Total == 0 {
		b.WriteString(styles.ok.Render("No changes required in this chapter."))
	} else {
		b.WriteString(styles.ok.Render(fmt.Sprintf("Nothing pending here: %d accepted, %d rejected.", counts.Accepted, counts.Rejected)))
	}
	return b.String()
}
