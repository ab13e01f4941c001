package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tube-transcriber/internal/command"
	"tube-transcriber/internal/domain"
)

const (
	stageLoading       = "loading"
	stagePreprocessing = "preprocessing"
	stageTranscribing  = "transcribing"
)

var detectedLanguageLine = regexp.MustCompile(`auto-detected language:\s*([A-Za-z-]+)\s*\(p\s*=\s*([0-9.]+)\)`)

// Config names the external tools and model directory used by the engine.
type Config struct {
	FFmpegPath  string
	WhisperPath string
	ModelDir    string
}

// Engine runs ffmpeg preprocessing and whisper.cpp transcription.
type Engine struct {
	ffmpegPath  string
	whisperPath string
	modelDir    string
	runner      command.Runner
	lookPath    func(file string) (string, error)
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
}

// NewEngine constructs the production engine with OS dependencies.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		modelDir:    cfg.ModelDir,
		runner:      &command.ExecRunner{},
		lookPath:    exec.LookPath,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
	if p := strings.TrimSpace(cfg.FFmpegPath); p != "" {
		e.ffmpegPath = p
	}
	if p := strings.TrimSpace(cfg.WhisperPath); p != "" {
		e.whisperPath = p
	}
	return e
}

// NewEngineForTests constructs an engine with injectable dependencies.
func NewEngineForTests(
	cfg Config,
	runner command.Runner,
	lookPath func(file string) (string, error),
	removeAll func(path string) error,
) *Engine {
	e := NewEngine(cfg)
	e.runner = runner
	if lookPath != nil {
		e.lookPath = lookPath
	}
	if removeAll != nil {
		e.removeAll = removeAll
	}
	return e
}

// Session is a loaded model ready to transcribe any number of audio files.
type Session struct {
	engine    *Engine
	modelName string
	modelPath string
}

// ModelPath returns the resolved model file.
func (s *Session) ModelPath() string {
	return s.modelPath
}

// Load resolves the model and verifies the tools once before a run.
func (e *Engine) Load(ctx context.Context, modelName string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, tool := range []string{e.ffmpegPath, e.whisperPath} {
		if _, err := e.lookPath(tool); err != nil {
			return nil, &command.Error{
				Stage:   stageLoading,
				Message: fmt.Sprintf("required tool not found in PATH: %s", tool),
				Err:     err,
			}
		}
	}

	modelPath, err := e.resolveModelPath(modelName)
	if err != nil {
		return nil, &command.Error{
			Stage:   stageLoading,
			Message: err.Error(),
			Err:     err,
		}
	}

	return &Session{engine: e, modelName: modelName, modelPath: modelPath}, nil
}

// Transcribe converts audioPath to 16k mono WAV and runs whisper.cpp on it.
func (s *Session) Transcribe(ctx context.Context, audioPath, language string) (domain.TranscriptionResult, error) {
	e := s.engine
	if strings.TrimSpace(audioPath) == "" {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stagePreprocessing,
			Message: "audio path is required",
		}
	}
	if _, err := e.stat(audioPath); err != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stagePreprocessing,
			Message: fmt.Sprintf("cannot access audio file: %s", audioPath),
			Err:     err,
		}
	}

	tempDir, err := e.mkdirTemp("", "tube-transcriber-*")
	if err != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stagePreprocessing,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() { _ = e.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	args := buildFFmpegArgs(audioPath, wavPath)
	res, runErr := e.runner.Run(ctx, e.ffmpegPath, args...)
	ffmpegLog := command.NewLog(e.ffmpegPath, args, res)
	if runErr != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stagePreprocessing,
			Message: "ffmpeg audio conversion failed",
			Log:     ffmpegLog,
			Err:     runErr,
		}
	}
	if _, err := e.stat(wavPath); err != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stagePreprocessing,
			Message: "ffmpeg completed but output file is missing",
			Log:     ffmpegLog,
			Err:     err,
		}
	}

	outBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(s.modelPath, wavPath, outBase, language)
	res, runErr = e.runner.Run(ctx, e.whisperPath, whisperArgs...)
	whisperLog := command.NewLog(e.whisperPath, whisperArgs, res)
	if runErr != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stageTranscribing,
			Message: "whisper.cpp transcription failed",
			Log:     whisperLog,
			Err:     runErr,
		}
	}

	raw, err := e.readFile(outBase + ".json")
	if err != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stageTranscribing,
			Message: "whisper.cpp completed but transcript .json file is missing",
			Log:     whisperLog,
			Err:     err,
		}
	}

	result, err := parseWhisperJSON(raw)
	if err != nil {
		return domain.TranscriptionResult{}, &command.Error{
			Stage:   stageTranscribing,
			Message: "cannot parse whisper.cpp JSON output",
			Log:     whisperLog,
			Err:     err,
		}
	}
	applyDetectedLanguage(&result, res.Stderr)
	return result, nil
}

// whisperOutput mirrors the subset of whisper.cpp -oj output we read.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWhisperJSON maps whisper.cpp JSON output to a TranscriptionResult.
func parseWhisperJSON(raw []byte) (domain.TranscriptionResult, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.TranscriptionResult{}, err
	}

	segments := make([]domain.Segment, 0, len(out.Transcription))
	texts := make([]string, 0, len(out.Transcription))
	for _, item := range out.Transcription {
		text := strings.TrimSpace(item.Text)
		segments = append(segments, domain.Segment{
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}

	return domain.TranscriptionResult{
		FullText:         strings.Join(texts, " "),
		Segments:         segments,
		DetectedLanguage: out.Result.Language,
	}, nil
}

// applyDetectedLanguage reads the auto-detect line whisper.cpp prints to stderr.
func applyDetectedLanguage(result *domain.TranscriptionResult, stderr string) {
	m := detectedLanguageLine.FindStringSubmatch(stderr)
	if m == nil {
		return
	}
	if result.DetectedLanguage == "" {
		result.DetectedLanguage = m[1]
	}
	if p, err := strconv.ParseFloat(m[2], 64); err == nil {
		result.LanguageConfidence = p
	}
}

// resolveModelPath finds the model file for a name, file path, or bare directory.
func (e *Engine) resolveModelPath(modelName string) (string, error) {
	name := strings.TrimSpace(modelName)
	if name != "" {
		if info, err := e.stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
	}

	dir := strings.TrimSpace(e.modelDir)
	if dir == "" {
		return "", fmt.Errorf("model directory is required")
	}
	info, err := e.stat(dir)
	if err != nil {
		return "", fmt.Errorf("cannot access model directory: %s", dir)
	}
	if !info.IsDir() {
		return dir, nil
	}

	if name != "" {
		for _, candidate := range modelFileCandidates(name) {
			path := filepath.Join(dir, candidate)
			if info, err := e.stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
		return "", fmt.Errorf("model %q not found in %s (expected %s)", name, dir, modelFileCandidates(name)[0])
	}

	entries, err := e.readDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", dir)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", dir)
	}

	sort.Strings(modelNames)
	return filepath.Join(dir, modelNames[0]), nil
}

// modelFileCandidates lists file names a model name may be stored under.
func modelFileCandidates(name string) []string {
	return []string{
		"ggml-" + name + ".bin",
		name + ".bin",
		name + ".gguf",
		name,
	}
}

// normalizeLanguage maps "auto" and empty language to whisper's auto-detect.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return "auto"
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for JSON transcript export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-l", normalizeLanguage(language),
	}
}
