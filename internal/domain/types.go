package domain

import "errors"

// ErrNoValidReferences is returned when no usable video reference survives parsing.
var ErrNoValidReferences = errors.New("no valid YouTube URLs found")

// VideoReference names one remote video to fetch and transcribe.
type VideoReference string

// String returns the raw reference text.
func (r VideoReference) String() string {
	return string(r)
}

// RunStatus tracks the lifecycle of one batch run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ItemStage tracks each pipeline stage for a single batch item.
type ItemStage string

const (
	ItemStagePending      ItemStage = "pending"
	ItemStageFetching     ItemStage = "fetching"
	ItemStageTranscribing ItemStage = "transcribing"
	ItemStageWriting      ItemStage = "writing"
	ItemStageSucceeded    ItemStage = "succeeded"
	ItemStageFailed       ItemStage = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ItemStage) Terminal() bool {
	return s == ItemStageSucceeded || s == ItemStageFailed
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelDir          string `json:"modelDir" toml:"model_dir"`
	ModelName         string `json:"modelName" toml:"model_name"`
	OutputDir         string `json:"outputDir" toml:"output_dir"`
	Language          string `json:"language" toml:"language"`
	IncludeTimestamps bool   `json:"includeTimestamps" toml:"include_timestamps"`
	CombineOutputs    bool   `json:"combineOutputs" toml:"combine_outputs"`
	ContinueOnError   bool   `json:"continueOnError" toml:"continue_on_error"`
	Concurrency       int    `json:"concurrency" toml:"concurrency"`
	FetchInterval     string `json:"fetchInterval,omitempty" toml:"fetch_interval,omitempty"`
	YtDlpPath         string `json:"ytDlpPath,omitempty" toml:"yt_dlp_path,omitempty"`
	FFmpegPath        string `json:"ffmpegPath,omitempty" toml:"ffmpeg_path,omitempty"`
	FFprobePath       string `json:"ffprobePath,omitempty" toml:"ffprobe_path,omitempty"`
	WhisperPath       string `json:"whisperPath,omitempty" toml:"whisper_path,omitempty"`
	LogLevel          string `json:"logLevel,omitempty" toml:"log_level,omitempty"`
	LogFile           string `json:"logFile,omitempty" toml:"log_file,omitempty"`
	HistoryPath       string `json:"historyPath,omitempty" toml:"history_path,omitempty"`
}

// BatchOptions returns the per-run options captured from s.
func (s Settings) BatchOptions() BatchOptions {
	return BatchOptions{
		ModelName:         s.ModelName,
		Language:          s.Language,
		IncludeTimestamps: s.IncludeTimestamps,
		CombineOutputs:    s.CombineOutputs,
		ContinueOnError:   s.ContinueOnError,
		OutputDir:         s.OutputDir,
		Concurrency:       s.Concurrency,
	}
}

// Run stores the current run identity and lifecycle status.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
	Total  int       `json:"total"`
	Done   int       `json:"done"`
}
