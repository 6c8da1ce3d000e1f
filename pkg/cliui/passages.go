package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/localcompute/g4l/pkg/retrieval"
	"github.com/localcompute/g4l/pkg/utils"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// WritePassages prints ranked passages one per block, with text cut to
// width cells.
func WritePassages(w io.Writer, query string, passages []retrieval.Passage, width int) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n\n", headerStyle.Render("Query:"), query)
	if len(passages) == 0 {
		b.WriteString(mutedStyle.Render("No passages found.") + "\n")
	}

	for i, p := range passages {
		fmt.Fprintf(&b, "%s %s %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%d.", i+1)),
			scoreStyle.Render(retrieval.FormatScore(p.Score)),
			sourceStyle.Render(p.SourceFile),
			mutedStyle.Render("page "+p.PageLabel),
		)
		fmt.Fprintf(&b, "   %s\n\n", utils.Truncate(utils.SingleLine(p.Text), max(width-6, 20)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
