package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tube-transcriber/internal/history"
	"tube-transcriber/internal/report"
)

func newHistoryCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded batch runs",
	}
	cmd.AddCommand(newHistoryListCmd(deps))
	cmd.AddCommand(newHistoryShowCmd(deps))
	return cmd
}

func newHistoryListCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(deps.Settings.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			f := NewFormatter(deps.Stdout)
			if len(entries) == 0 {
				f.Info("No runs recorded")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %s  %d/%d succeeded, %d failed  %s",
					e.RunID, e.StartedAt.Local().Format(time.DateTime), e.Succeeded, e.Total, e.Failed, e.OutputDir)
				if e.Cancelled {
					line += "  (cancelled)"
				}
				f.Info(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "number of runs to show")
	return cmd
}

func newHistoryShowCmd(deps *Dependencies) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(deps.Settings.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rep, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if format != "" {
				parsed, err := report.ParseFormat(format)
				if err != nil {
					return err
				}
				data, err := report.Marshal(rep, parsed)
				if err != nil {
					return err
				}
				_, err = deps.Stdout.Write(data)
				return err
			}

			f := NewFormatter(deps.Stdout)
			f.Info(fmt.Sprintf("Run %s started %s, took %s", rep.RunID, rep.StartedAt.Local().Format(time.DateTime), rep.Duration().Round(time.Second)))
			for _, o := range rep.Outcomes {
				if o.Succeeded() {
					f.Progress(fmt.Sprintf("✓ [%d] %s -> %s", o.Index, o.Reference, o.TranscriptPath))
				} else {
					f.Progress(fmt.Sprintf("✗ [%d] %s (%s): %s", o.Index, o.Reference, o.FailureKind, o.Error))
				}
			}
			for _, line := range report.SummaryLines(rep) {
				f.Progress(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "print the raw report as json or yaml")
	return cmd
}
