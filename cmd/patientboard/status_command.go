package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"patientboard/internal/config"
	"patientboard/internal/ledger"
)

type entryView struct {
	Folder     string `json:"folder"`
	PatientID  int64  `json:"patient_id,omitempty"`
	Status     string `json:"status"`
	Template   string `json:"template,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  string `json:"updated_at"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON   bool
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger totals and folder states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				summary, err := store.Summary(cmd.Context())
				if err != nil {
					return err
				}
				entries, err := store.List(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				views := make([]entryView, 0, len(entries))
				for _, e := range entries {
					views = append(views, newEntryView(e))
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), struct {
						Summary ledger.Summary `json:"summary"`
						Folders []entryView    `json:"folders"`
					}{summary, views})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Photo root: %s\n", cfg.Paths.PhotoRoot)
				fmt.Fprintf(out, "Ledger:     %s\n", store.Path())
				fmt.Fprintln(out, renderTable(
					[]string{"Pending", "In flight", "Assembled", "Uploaded", "Failed", "Review", "Total"},
					[][]string{{
						strconv.Itoa(summary.Pending), strconv.Itoa(summary.InFlight),
						strconv.Itoa(summary.Assembled), strconv.Itoa(summary.Uploaded),
						strconv.Itoa(summary.Failed), strconv.Itoa(summary.Review),
						strconv.Itoa(summary.Total),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				if len(views) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(views))
				for i, v := range views {
					rows = append(rows, []string{
						v.Folder,
						strconv.FormatInt(v.PatientID, 10),
						statusLabel(out, entries[i].Status),
						strconv.Itoa(v.Attempts),
						v.UpdatedAt,
						dash(v.Error),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Folder", "ID", "Status", "Attempts", "Updated", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only list folders with these statuses")
	return cmd
}

func newEntryView(e *ledger.Entry) entryView {
	view := entryView{
		Folder:    filepath.Base(e.FolderPath),
		PatientID: e.PatientID,
		Status:    string(e.Status),
		RecordID:  e.RecordID,
		Attempts:  e.Attempts,
		Error:     e.ErrorMessage,
		UpdatedAt: e.UpdatedAt.Local().Format(time.DateTime),
	}
	if e.TemplatePath != "" {
		view.Template = filepath.Base(e.TemplatePath)
	}
	if e.UploadedAt != nil {
		view.UploadedAt = e.UploadedAt.Local().Format(time.DateTime)
	}
	return view
}

func parseStatuses(values []string) ([]ledger.Status, error) {
	filter := make([]ledger.Status, 0, len(values))
	for _, value := range values {
		status, ok := ledger.ParseStatus(value)
		if !ok {
			known := make([]string, 0, len(ledger.AllStatuses()))
			for _, s := range ledger.AllStatuses() {
				known = append(known, string(s))
			}
			return nil, fmt.Errorf("unknown status %q (known: %s)", value, strings.Join(known, ", "))
		}
		filter = append(filter, status)
	}
	return filter, nil
}
