package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/hoard/internal/journal"
	"github.com/tanq16/hoard/internal/output"
)

func newEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events [CONTENT_ID]",
		Short: "Show recorded task transitions",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if cfg.JournalPath == "" {
				output.PrintError("Journal is disabled in the config")
				os.Exit(1)
			}
			if err := cfg.EnsureDirs(); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			store, err := journal.Open(cfg.JournalPath)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error opening journal: %v", err))
				os.Exit(1)
			}
			defer store.Close()
			contentID := ""
			if len(args) == 1 {
				contentID = args[0]
			}
			events, err := store.List(cmd.Context(), contentID, limit)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading journal: %v", err))
				os.Exit(1)
			}
			output.PrintEvents(os.Stdout, events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to show")
	return cmd
}
