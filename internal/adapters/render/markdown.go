package render

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/sprinter/internal/app"
)

// minWrapWidth keeps tables in the report legible on narrow terminals.
const minWrapWidth = 24

// Markdown styles md for an ANSI terminal, wrapping at width.
// The raw text comes back unchanged if glamour cannot render it.
func Markdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width, minWrapWidth)),
		glamour.WithEmoji(),
	)
	if err != nil {
		return md
	}
	out, err := tr.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// Report styles the sprint plan report built by app.MarkdownReport.
func Report(board app.Board, width int) string {
	return Markdown(app.MarkdownReport(board), width)
}
