package cli

import (
	"github.com/spf13/cobra"

	"tube-transcriber/internal/history"
	"tube-transcriber/internal/mcpserver"
	"tube-transcriber/internal/service"
)

func newMCPCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve transcription tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.Options{Settings: deps.Settings, Logger: deps.Logger}
			store, err := history.Open(deps.Settings.HistoryPath)
			if err != nil {
				deps.Logger.Warn("run history disabled", "error", err)
			} else {
				defer store.Close()
				opts.History = store
			}

			svc, err := service.New(opts)
			if err != nil {
				return err
			}
			return mcpserver.New(Version, svc, deps.Logger).Run(cmd.Context())
		},
	}
}
