package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"patientboard/internal/config"
	"patientboard/internal/ledger"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [folders...]",
		Short: "Return failed and review folders to the pipeline",
		Long: "Failed and review folders are picked up again by the next batch. Folders that " +
			"already have a template resume at upload. With no arguments every failed or review folder is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				n, err := store.RetryFailed(cmd.Context(), absPaths(args)...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d folder(s) queued for retry\n", n)
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget ledger rows so their folders are treated as new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(statuses) == 0 {
				return fmt.Errorf("pass --status (for example --status uploaded) or --status all")
			}
			var filter []ledger.Status
			if !slices.Contains(statuses, "all") {
				parsed, err := parseStatuses(statuses)
				if err != nil {
					return err
				}
				filter = parsed
			}
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				n, err := store.Clear(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger row(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Statuses to clear, or \"all\"")
	return cmd
}
