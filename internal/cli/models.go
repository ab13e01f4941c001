package cli

import (
	"fmt"

	"charm.land/bubbles/v2/progress"
	"github.com/spf13/cobra"

	"tube-transcriber/internal/models"
)

func newModelsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List and download whisper.cpp models",
	}
	cmd.AddCommand(newModelsListCmd(deps))
	cmd.AddCommand(newModelsDownloadCmd(deps))
	return cmd
}

func newModelsListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List model presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(deps.Stdout)
			for _, m := range models.List(deps.Settings.ModelDir) {
				marker := " "
				if m.Downloaded {
					marker = "✓"
				}
				current := ""
				if m.ID == deps.Settings.ModelName {
					current = " (current)"
				}
				f.Info(fmt.Sprintf("%s %-16s %-8s %s%s", marker, m.ID, m.SizeLabel, m.Description, current))
			}
			f.Hint(fmt.Sprintf("Model directory: %s", deps.Settings.ModelDir))
			return nil
		},
	}
}

func newModelsDownloadCmd(deps *Dependencies) *cobra.Command {
	var use bool

	cmd := &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model preset into the model directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(deps.Stdout)
			bar := progress.New(progress.WithDefaultBlend(), progress.WithWidth(40))
			showBar := isTerminal(deps.Stdout)

			f.Info(fmt.Sprintf("Downloading %s into %s", args[0], deps.Settings.ModelDir))
			path, err := models.NewDownloader().Download(cmd.Context(), args[0], deps.Settings.ModelDir, func(written, total int64) {
				if !showBar || total <= 0 {
					return
				}
				fmt.Fprintf(deps.Stdout, "\r%s %d/%d MB", bar.ViewAs(float64(written)/float64(total)), written>>20, total>>20)
			})
			if showBar {
				fmt.Fprintln(deps.Stdout)
			}
			if err != nil {
				return err
			}
			f.Success("Saved: " + path)

			if use {
				settings := deps.Settings
				settings.ModelName = args[0]
				if err := deps.Store.Save(settings); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
				f.Info(fmt.Sprintf("Default model set to %s", args[0]))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&use, "use", false, "make this the default model in settings")
	return cmd
}
