package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tube-transcriber/internal/diagnostics"
)

func newDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, the whisper model and the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(deps.Stdout)
			rep := diagnostics.NewChecker().Run(deps.Settings)

			for _, item := range rep.Items {
				f.Check(item.Name, item.Passed(), item.Message)
				if item.Hint != "" && !item.Passed() {
					f.Hint("      " + item.Hint)
				}
			}

			if failures := rep.Failures(); len(failures) > 0 {
				f.Warning(fmt.Sprintf("%d prerequisite(s) missing.", len(failures)))
				return errors.New("diagnostics failed")
			}
			f.Success("All prerequisites met. Ready to transcribe!")
			return nil
		},
	}
}
