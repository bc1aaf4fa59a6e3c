package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/attunehealth/scribe/pkg/transcript"
)

// TranscriptStyles holds the styles of the live transcript view.
type TranscriptStyles struct {
	Speaker lipgloss.Style
	Final   lipgloss.Style
	Interim lipgloss.Style
	Status  lipgloss.Style
}

// DefaultTranscriptStyles renders finals plainly, the interim overlay
// faint and italic, and speaker labels in the accent color.
func DefaultTranscriptStyles() TranscriptStyles {
	return TranscriptStyles{
		Speaker: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")),
		Final:   lipgloss.NewStyle(),
		Interim: lipgloss.NewStyle().Faint(true).Italic(true),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681")),
	}
}

// RenderLines renders a transcript view, one utterance per row. The
// trailing interim row, if any, is styled provisionally so the reader can
// tell it may still be rewritten.
func (s TranscriptStyles) RenderLines(lines []transcript.Line) string {
	var b strings.Builder
	for _, line := range lines {
		if line.Speaker != nil {
			b.WriteString(s.Speaker.Render(fmt.Sprintf("Speaker %d:", *line.Speaker)))
			b.WriteByte(' ')
		}
		if line.Interim {
			b.WriteString(s.Interim.Render(line.Text))
		} else {
			b.WriteString(s.Final.Render(line.Text))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderStatus renders a one-line session status banner.
func (s TranscriptStyles) RenderStatus(status string) string {
	return s.Status.Render("[" + status + "]")
}
