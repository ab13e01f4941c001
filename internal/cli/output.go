package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tube-transcriber/internal/batch"
)

// Theme holds the colors used for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Warning: lipgloss.Color("#FFAF00"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// Formatter writes styled lines to a terminal or plain writer.
type Formatter struct {
	w     io.Writer
	theme Theme
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w, theme: defaultTheme}
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintln(f.w, f.theme.successStyle().Render("✓ "+msg))
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, f.theme.errorStyle().Render("✗ "+msg))
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, f.theme.warningStyle().Render("! "+msg))
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, msg)
}

func (f *Formatter) Hint(msg string) {
	fmt.Fprintln(f.w, f.theme.hintStyle().Render(msg))
}

// Check prints one diagnostic row.
func (f *Formatter) Check(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  %s %s: %s\n", f.theme.successStyle().Render("✓"), name, detail)
	} else {
		fmt.Fprintf(f.w, "  %s %s: %s\n", f.theme.errorStyle().Render("✗"), name, detail)
	}
}

// Progress prints one orchestrator progress line, colored by its marker.
func (f *Formatter) Progress(line string) {
	fmt.Fprintln(f.w, f.styleLine(line))
}

func (f *Formatter) styleLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "✓"):
		return f.theme.successStyle().Render(line)
	case strings.HasPrefix(trimmed, "✗"), strings.HasPrefix(trimmed, "Error"):
		return f.theme.errorStyle().Render(line)
	case strings.HasPrefix(trimmed, "Warning"), strings.HasPrefix(trimmed, "Skipping"), strings.HasPrefix(trimmed, "Stopping"), strings.HasPrefix(trimmed, "Batch cancelled"):
		return f.theme.warningStyle().Render(line)
	case strings.HasPrefix(trimmed, "["):
		return f.theme.statusStyle().Render(line)
	default:
		return line
	}
}

// Sink adapts the formatter to a batch progress sink.
func (f *Formatter) Sink() batch.ProgressSink {
	return batch.SinkFunc(f.Progress)
}
