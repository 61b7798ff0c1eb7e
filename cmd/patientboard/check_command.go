package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"patientboard/internal/deps"
	"patientboard/internal/notifications"
	"patientboard/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify folders, fonts, the ledger, the patient API and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}

			results := preflight.RunAll(cmd.Context(), cfg, true)
			rows := make([][]string, 0, len(results)+1)
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed, false), r.Detail})
			}
			statuses := preflight.CheckSystemDeps(cfg)
			for _, st := range statuses {
				detail := st.Description
				if st.Detail != "" {
					detail = st.Detail + " - " + detail
				}
				rows = append(rows, []string{st.Name, passLabel(st.Available, st.Optional), detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))

			if notify {
				if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if cfg.Notifications.NtfyTopic == "" {
					fmt.Fprintln(out, "Notifications disabled (notifications.ntfy_topic is empty)")
				} else {
					fmt.Fprintln(out, "Test notification sent")
				}
			}

			failed := len(preflight.Failures(results)) + len(deps.Missing(statuses))
			if failed > 0 {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification")
	return cmd
}

func passLabel(ok, optional bool) string {
	switch {
	case ok:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAIL"
	}
}
