package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"patientboard/internal/logging"
)

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the newest entries of the error journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			journal := logging.NewJournal(cfg.JournalPath())
			entries, err := journal.Tail(lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 && !follow {
				fmt.Fprintf(out, "No errors recorded in %s\n", journal.Path())
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(out, entry)
			}
			if !follow {
				return nil
			}
			offset, err := journal.Size()
			if err != nil {
				return err
			}
			return journal.Follow(cmd.Context(), offset, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries until interrupted")
	return cmd
}
