package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tube-transcriber/internal/batch"
	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/history"
	"tube-transcriber/internal/report"
	"tube-transcriber/internal/service"
)

type batchFlags struct {
	file           string
	url            string
	model          string
	language       string
	timestamps     bool
	combine        bool
	stopOnError    bool
	output         string
	concurrency    int
	manifest       bool
	manifestPath   string
	manifestFormat string
	tui            bool
	noHistory      bool
}

func newBatchCmd(deps *Dependencies) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Transcribe a batch of YouTube videos",
		Long: `Transcribe YouTube videos given as arguments, read from a file with --file,
or piped on stdin. Text may contain URLs separated by commas, tabs or newlines;
anything that is not a YouTube URL is skipped. Use --url for a single video.`,
		Example: `  tube-transcriber batch https://youtu.be/abc https://www.youtube.com/watch?v=xyz
  tube-transcriber batch --file urls.txt --combine --timestamps
  cat urls.txt | tube-transcriber batch --model small --language de`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, flags, deps.Stdin)
			if err != nil {
				return err
			}
			opts := buildOptions(cmd, flags, deps.Settings)

			format, err := report.ParseFormat(flags.manifestFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var hist service.HistoryStore
			if !flags.noHistory {
				store, err := history.Open(deps.Settings.HistoryPath)
				if err != nil {
					deps.Logger.Warn("run history disabled", "error", err)
				} else {
					defer store.Close()
					hist = store
				}
			}

			req := service.Request{Text: text, URL: flags.url, Options: opts}
			formatter := NewFormatter(deps.Stdout)

			var res service.Result
			if flags.tui && isTerminal(deps.Stdout) {
				res, err = runWithTUI(ctx, deps, hist, req)
			} else {
				if flags.tui {
					formatter.Warning("stdout is not a terminal; printing plain progress")
				}
				var svc *service.Service
				svc, err = service.New(service.Options{Settings: deps.Settings, Logger: deps.Logger, History: hist})
				if err != nil {
					return err
				}
				res, err = svc.RunBatch(ctx, req, formatter.Sink())
			}
			if err != nil {
				if errors.Is(err, domain.ErrNoValidReferences) || batch.IsSetupError(err) {
					return err
				}
				return fmt.Errorf("batch failed: %w", err)
			}

			if flags.manifest || flags.manifestPath != "" {
				path := flags.manifestPath
				if path == "" {
					path = report.DefaultManifestPath(res.Report, format)
				}
				if err := report.WriteManifest(res.Report, path); err != nil {
					formatter.Warning(fmt.Sprintf("could not write manifest: %v", err))
				} else {
					formatter.Info("Manifest: " + path)
				}
			}

			if res.Report.FailureCount() > 0 {
				return errItemsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "read URLs from a file (- for stdin)")
	cmd.Flags().StringVar(&flags.url, "url", "", "transcribe a single video URL")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "whisper model name (tiny, base, small, medium, large-v3, ...)")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "language code, or auto to detect")
	cmd.Flags().BoolVarP(&flags.timestamps, "timestamps", "t", false, "prefix each segment with its timestamp")
	cmd.Flags().BoolVarP(&flags.combine, "combine", "c", false, "also write one combined transcript")
	cmd.Flags().BoolVar(&flags.stopOnError, "stop-on-error", false, "stop at the first failed video")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "directory for transcript files")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", 0, "videos processed at once")
	cmd.Flags().BoolVar(&flags.manifest, "manifest", false, "write a run manifest next to the transcripts")
	cmd.Flags().StringVar(&flags.manifestPath, "manifest-path", "", "write the run manifest to this path (.json, .yaml)")
	cmd.Flags().StringVar(&flags.manifestFormat, "manifest-format", "json", "manifest format when no path is given (json or yaml)")
	cmd.Flags().BoolVar(&flags.tui, "tui", false, "show an interactive progress view")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "do not record this run in the history database")

	return cmd
}

// readInput gathers raw batch text from arguments, --file and stdin.
func readInput(args []string, flags batchFlags, stdin io.Reader) (string, error) {
	if strings.TrimSpace(flags.url) != "" {
		return "", nil
	}

	parts := append([]string(nil), args...)
	switch flags.file {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		parts = append(parts, string(data))
	default:
		data, err := os.ReadFile(flags.file)
		if err != nil {
			return "", fmt.Errorf("read URL file: %w", err)
		}
		parts = append(parts, string(data))
	}

	if len(parts) == 0 {
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return "", errors.New("no input: pass URLs as arguments, --file, --url or pipe them on stdin")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}

// buildOptions starts from settings and applies flags the user set.
func buildOptions(cmd *cobra.Command, flags batchFlags, settings domain.Settings) domain.BatchOptions {
	opts := settings.BatchOptions()
	changed := cmd.Flags().Changed
	if changed("model") {
		opts.ModelName = flags.model
	}
	if changed("language") {
		opts.Language = flags.language
	}
	if changed("timestamps") {
		opts.IncludeTimestamps = flags.timestamps
	}
	if changed("combine") {
		opts.CombineOutputs = flags.combine
	}
	if changed("stop-on-error") {
		opts.ContinueOnError = !flags.stopOnError
	}
	if changed("output") {
		opts.OutputDir = flags.output
	}
	if changed("concurrency") {
		opts.Concurrency = flags.concurrency
	}
	return opts
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runWithTUI runs the batch behind the interactive progress view.
func runWithTUI(ctx context.Context, deps *Dependencies, hist service.HistoryStore, req service.Request) (service.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newBatchProgram(cancel)
	svc, err := service.New(service.Options{
		Settings: deps.Settings,
		Logger:   deps.Logger,
		History:  hist,
		Observer: programObserver{p: p},
	})
	if err != nil {
		return service.Result{}, err
	}

	go func() {
		res, err := svc.RunBatch(ctx, req, programSink{p: p})
		p.Send(doneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return service.Result{}, fmt.Errorf("progress UI error: %w", err)
	}
	m, ok := final.(batchModel)
	if !ok {
		return service.Result{}, errors.New("progress UI ended unexpectedly")
	}

	if m.err != nil {
		return m.res, m.err
	}
	formatter := NewFormatter(deps.Stdout)
	for _, line := range report.SummaryLines(m.res.Report) {
		formatter.Progress(line)
	}
	return m.res, nil
}
