package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	progressColorConstant                    = lipgloss.Color("2")
	errorColorConstant                       = lipgloss.Color("1")
	highlightedLineTemplateConstant          = "%s\n"
	progressMessageTemplateConstant          = "%s: %s"
	progressMessageNoSubjectTemplateConstant = "%s"
)

// Highlighter writes colored progress banners and error lines. Color is only
// emitted when the destination writer is a terminal.
type Highlighter struct {
	writer        io.Writer
	progressStyle lipgloss.Style
	errorStyle    lipgloss.Style
}

// NewHighlighter constructs a Highlighter for writer. A nil writer discards output.
func NewHighlighter(writer io.Writer) *Highlighter {
	if writer == nil {
		writer = io.Discard
	}
	renderer := lipgloss.NewRenderer(writer)
	return &Highlighter{
		writer:        writer,
		progressStyle: renderer.NewStyle().Foreground(progressColorConstant),
		errorStyle:    renderer.NewStyle().Foreground(errorColorConstant).Bold(true),
	}
}

// Progress prints a banner describing a step, optionally scoped to a subject such as a repository directory.
func (highlighter *Highlighter) Progress(subject string, message string) {
	if highlighter == nil {
		return
	}
	text := fmt.Sprintf(progressMessageNoSubjectTemplateConstant, message)
	if len(subject) > 0 {
		text = fmt.Sprintf(progressMessageTemplateConstant, subject, message)
	}
	fmt.Fprintf(highlighter.writer, highlightedLineTemplateConstant, highlighter.progressStyle.Render(text))
}

// Error prints a highlighted error line.
func (highlighter *Highlighter) Error(failure error) {
	if highlighter == nil || failure == nil {
		return
	}
	fmt.Fprintf(highlighter.writer, highlightedLineTemplateConstant, highlighter.errorStyle.Render(failure.Error()))
}
