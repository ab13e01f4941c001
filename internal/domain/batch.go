package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// BatchOptions is the configuration captured once per run.
type BatchOptions struct {
	ModelName         string `json:"modelName" yaml:"modelName"`
	Language          string `json:"language,omitempty" yaml:"language,omitempty"`
	IncludeTimestamps bool   `json:"includeTimestamps" yaml:"includeTimestamps"`
	CombineOutputs    bool   `json:"combineOutputs" yaml:"combineOutputs"`
	ContinueOnError   bool   `json:"continueOnError" yaml:"continueOnError"`
	OutputDir         string `json:"outputDir" yaml:"outputDir"`
	Concurrency       int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// DefaultBatchOptions returns options that keep going past failed items.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		ModelName:       "base",
		ContinueOnError: true,
	}
}

// LanguageHint returns the language to force, or "" for auto-detect.
func (o BatchOptions) LanguageHint() string {
	lang := strings.TrimSpace(o.Language)
	if strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// FetchResult is the downloaded audio asset and its metadata.
type FetchResult struct {
	AudioPath       string  `json:"audioPath"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Segment is a time-bounded span of recognized speech.
type Segment struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

// TranscriptionResult is the engine output for one audio asset.
type TranscriptionResult struct {
	FullText           string    `json:"fullText"`
	Segments           []Segment `json:"segments"`
	DetectedLanguage   string    `json:"detectedLanguage,omitempty"`
	LanguageConfidence float64   `json:"languageConfidence,omitempty"`
}

// OutcomeStatus tags an ItemOutcome as success or failure.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// FailureKind attributes a failed item to the step that broke.
type FailureKind string

const (
	FailureFetch         FailureKind = "fetch"
	FailureTranscription FailureKind = "transcription"
	FailureWrite         FailureKind = "write"
	FailureCancelled     FailureKind = "cancelled"
	FailureCleanup       FailureKind = "cleanup"
)

// ItemOutcome is the result of processing one reference.
type ItemOutcome struct {
	Index          int            `json:"index" yaml:"index"`
	Reference      VideoReference `json:"reference" yaml:"reference"`
	Status         OutcomeStatus  `json:"status" yaml:"status"`
	Title          string         `json:"title,omitempty" yaml:"title,omitempty"`
	TranscriptPath string         `json:"transcriptPath,omitempty" yaml:"transcriptPath,omitempty"`
	FailureKind    FailureKind    `json:"failureKind,omitempty" yaml:"failureKind,omitempty"`
	Error          string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// SuccessOutcome builds a successful outcome.
func SuccessOutcome(index int, ref VideoReference, title, path string) ItemOutcome {
	return ItemOutcome{
		Index:          index,
		Reference:      ref,
		Status:         OutcomeSuccess,
		Title:          title,
		TranscriptPath: path,
	}
}

// FailureOutcome builds a failed outcome.
func FailureOutcome(index int, ref VideoReference, kind FailureKind, message string) ItemOutcome {
	return ItemOutcome{
		Index:       index,
		Reference:   ref,
		Status:      OutcomeFailure,
		FailureKind: kind,
		Error:       message,
	}
}

// Succeeded reports whether the outcome is a success.
func (o ItemOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// RunReport is the finalized result of one batch run.
type RunReport struct {
	RunID        string        `json:"runId" yaml:"runId"`
	StartedAt    time.Time     `json:"startedAt" yaml:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt" yaml:"finishedAt"`
	Options      BatchOptions  `json:"options" yaml:"options"`
	Total        int           `json:"total" yaml:"total"`
	Outcomes     []ItemOutcome `json:"outcomes" yaml:"outcomes"`
	CombinedPath string        `json:"combinedPath,omitempty" yaml:"combinedPath,omitempty"`
	Stopped      bool          `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	Cancelled    bool          `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// Succeeded returns only the successful outcomes.
func (r RunReport) Succeeded() []ItemOutcome {
	return lo.Filter(r.Outcomes, func(o ItemOutcome, _ int) bool { return o.Succeeded() })
}

// Failed returns only the failed outcomes.
func (r RunReport) Failed() []ItemOutcome {
	return lo.Reject(r.Outcomes, func(o ItemOutcome, _ int) bool { return o.Succeeded() })
}

// SuccessCount returns the number of successful items.
func (r RunReport) SuccessCount() int {
	return lo.CountBy(r.Outcomes, func(o ItemOutcome) bool { return o.Succeeded() })
}

// FailureCount returns the number of failed items.
func (r RunReport) FailureCount() int {
	return len(r.Outcomes) - r.SuccessCount()
}

// Skipped returns how many references never got an outcome.
func (r RunReport) Skipped() int {
	return r.Total - len(r.Outcomes)
}

// Duration returns the wall time of the run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// OutcomeDir returns the directory transcripts were written to.
func (r RunReport) OutcomeDir() string {
	return r.Options.OutputDir
}
