package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tube-transcriber/internal/domain"
)

const (
	headerRule   = 80
	itemRule     = 40
	emptyText    = "No transcript generated"
	humanTime    = "2006-01-02 15:04:05"
	fileNameTime = "20060102_150405"
)

// Error reports a failure to persist an artifact.
type Error struct {
	Op   string
	Path string
	Err  error
}

// Error formats write failures with the target path.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CombinedItem is one successful item folded into the combined artifact.
type CombinedItem struct {
	Title     string
	Reference domain.VideoReference
	FullText  string
}

// Writer persists individual and combined transcript artifacts.
type Writer struct {
	now       func() time.Time
	mkdirAll  func(path string, perm os.FileMode) error
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// New constructs the production writer with OS dependencies.
func New() *Writer {
	return &Writer{
		now:       time.Now,
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
	}
}

// NewForTests constructs a writer with injectable clock and file writes.
func NewForTests(
	now func() time.Time,
	writeFile func(name string, data []byte, perm os.FileMode) error,
) *Writer {
	w := New()
	if now != nil {
		w.now = now
	}
	if writeFile != nil {
		w.writeFile = writeFile
	}
	return w
}

// WriteIndividual persists one transcript into opts.OutputDir and returns its path.
func (w *Writer) WriteIndividual(
	result domain.TranscriptionResult,
	title string,
	ref domain.VideoReference,
	opts domain.BatchOptions,
) (string, error) {
	path := filepath.Join(opts.OutputDir, TranscriptFileName(title))
	body := RenderIndividual(result, title, ref, opts, w.now())
	if err := w.persist(opts.OutputDir, path, body); err != nil {
		return "", err
	}
	return path, nil
}

// WriteCombined persists the combined artifact stamped with at and returns its path.
func (w *Writer) WriteCombined(outputDir string, items []CombinedItem, at time.Time) (string, error) {
	path := filepath.Join(outputDir, CombinedFileName(at))
	body := RenderCombined(items, at)
	if err := w.persist(outputDir, path, body); err != nil {
		return "", err
	}
	return path, nil
}

// persist writes body to path, creating the directory when needed.
func (w *Writer) persist(dir, path, body string) error {
	if strings.TrimSpace(dir) == "" {
		return &Error{Op: "write", Path: path, Err: fmt.Errorf("output directory is required")}
	}
	if err := w.mkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "mkdir", Path: dir, Err: err}
	}
	if err := w.writeFile(path, []byte(body), 0o644); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	return nil
}

// CombinedFileName returns the combined artifact name for a run timestamp.
func CombinedFileName(at time.Time) string {
	return "combined_transcript_" + at.Format(fileNameTime) + ".txt"
}

// RenderIndividual builds the individual artifact body.
func RenderIndividual(
	result domain.TranscriptionResult,
	title string,
	ref domain.VideoReference,
	opts domain.BatchOptions,
	generatedAt time.Time,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript for: %s\n", title)
	fmt.Fprintf(&b, "YouTube URL: %s\n", ref)
	fmt.Fprintf(&b, "Generated with Whisper model: %s\n", opts.ModelName)
	if lang := opts.LanguageHint(); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}
	fmt.Fprintf(&b, "Generated on: %s\n", generatedAt.Format(humanTime))
	b.WriteString(strings.Repeat("-", headerRule) + "\n\n")

	if opts.IncludeTimestamps && len(result.Segments) > 0 {
		b.WriteString("TRANSCRIPT WITH TIMESTAMPS:\n\n")
		for _, seg := range result.Segments {
			fmt.Fprintf(&b, "[%s - %s] %s\n",
				FormatTimestamp(seg.Start),
				FormatTimestamp(seg.End),
				strings.TrimSpace(seg.Text),
			)
		}
		return b.String()
	}

	b.WriteString(bodyText(result.FullText))
	return b.String()
}

// RenderCombined builds the combined artifact body.
func RenderCombined(items []CombinedItem, at time.Time) string {
	var b strings.Builder
	b.WriteString("COMBINED TRANSCRIPT FILE\n")
	fmt.Fprintf(&b, "Generated on: %s\n", at.Format(humanTime))
	fmt.Fprintf(&b, "Total videos: %d\n", len(items))
	b.WriteString(strings.Repeat("=", headerRule) + "\n\n")

	for i, item := range items {
		fmt.Fprintf(&b, "VIDEO %d: %s\n", i+1, item.Title)
		fmt.Fprintf(&b, "URL: %s\n", item.Reference)
		b.WriteString(strings.Repeat("-", itemRule) + "\n")
		b.WriteString(bodyText(item.FullText))
		b.WriteString("\n\n" + strings.Repeat("=", headerRule) + "\n\n")
	}
	return b.String()
}

// bodyText substitutes a placeholder for empty transcripts.
func bodyText(text string) string {
	if strings.TrimSpace(text) == "" {
		return emptyText
	}
	return text
}
