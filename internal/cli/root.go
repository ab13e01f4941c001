// Package cli provides the tube-transcriber command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tube-transcriber/internal/config"
	"tube-transcriber/internal/domain"
)

// Version is set at build time.
var Version = "0.1.0"

// errItemsFailed signals that a batch finished with failed items; the
// summary has already been printed.
var errItemsFailed = errors.New("one or more videos failed")

// Dependencies carries the IO streams and the state loaded before each command.
type Dependencies struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Settings domain.Settings
	Store    config.Store
	Logger   *slog.Logger

	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var (
		configPath string
		envFile    string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "tube-transcriber",
		Short: "Batch-transcribe YouTube videos with a local whisper.cpp model",
		Long: `tube-transcriber downloads the audio of one or more YouTube videos with yt-dlp,
transcribes it locally with whisper.cpp and writes one transcript file per video,
optionally combined into a single document.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}

			envFiles := []string{".env", filepath.Join(config.AppDir(), ".env")}
			if envFile != "" {
				envFiles = []string{envFile}
			}
			if err := config.LoadEnv(envFiles...); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}

			settings, store, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			deps.Settings = settings
			deps.Store = store

			consoleLevel := slog.LevelWarn
			if verbose {
				consoleLevel = slog.LevelDebug
			}
			deps.Logger, deps.closeLog = config.SetupLoggerTo(deps.Stderr, consoleLevel, settings.LogFile, config.ParseLogLevel(settings.LogLevel))
			slog.SetDefault(deps.Logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps.closeLog != nil {
				if err := deps.closeLog(); err != nil {
					fmt.Fprintf(deps.Stderr, "Warning: failed to close log file: %v\n", err)
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (.json or .toml, default ~/.tube-transcriber/settings.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment overrides from this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.SetIn(deps.Stdin)
	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)

	rootCmd.AddCommand(newBatchCmd(deps))
	rootCmd.AddCommand(newDoctorCmd(deps))
	rootCmd.AddCommand(newModelsCmd(deps))
	rootCmd.AddCommand(newHistoryCmd(deps))
	rootCmd.AddCommand(newMCPCmd(deps))

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	deps := &Dependencies{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	err := NewRootCmd(deps).ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errItemsFailed):
		return 2
	default:
		NewFormatter(os.Stderr).Error(err.Error())
		return 1
	}
}
