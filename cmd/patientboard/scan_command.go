package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"patientboard/internal/config"
	"patientboard/internal/ledger"
	"patientboard/internal/scanner"
)

type folderView struct {
	Folder    string `json:"folder"`
	PatientID int64  `json:"patient_id,omitempty"`
	Problem   string `json:"problem,omitempty"`
	Missing   []int  `json:"missing_slots,omitempty"`
	Template  string `json:"template,omitempty"`
	Uploaded  bool   `json:"uploaded"`
	Objective bool   `json:"objective"`
	Status    string `json:"status,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Show what each patient folder needs without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				report, err := scanner.New(cfg, store).Scan(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]folderView, 0, len(report.Folders))
				for _, folder := range report.Folders {
					view := folderView{
						Folder:    folder.Name,
						PatientID: folder.PatientID,
						Missing:   folder.Missing,
						Uploaded:  folder.Uploaded,
						Objective: folder.Objective != nil,
					}
					if folder.Template != "" {
						view.Template = filepath.Base(folder.Template)
					}
					if folder.IDErr != nil {
						view.Problem = folder.IDErr.Error()
					}
					entry, err := store.Get(cmd.Context(), folder.Path)
					if err != nil {
						return err
					}
					if entry != nil {
						view.Status = string(entry.Status)
					}
					views = append(views, view)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), views)
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintf(out, "No patient folders under %s\n", report.Root)
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					id := strconv.FormatInt(v.PatientID, 10)
					if v.Problem != "" {
						id = "invalid"
					}
					photos := "complete"
					if len(v.Missing) > 0 {
						photos = "missing " + scanner.FormatSlots(v.Missing)
					}
					rows = append(rows, []string{
						v.Folder, id, photos, dash(v.Template), yesNo(v.Uploaded),
						statusLabel(out, ledger.Status(v.Status)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Folder", "ID", "Photos", "Template", "Uploaded", "Ledger"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprintf(out, "%d ready to assemble, %d ready to upload\n", report.AssembleCount(), report.UploadCount())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
