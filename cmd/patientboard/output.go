package main

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"patientboard/internal/ledger"
	"patientboard/internal/logging"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable lays rows out under headers. Short rows are padded and extra
// cells dropped.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// printJSON writes v as indented JSON for --json output.
func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusLabel colours a ledger status when out is a terminal.
func statusLabel(out io.Writer, status ledger.Status) string {
	label := string(status)
	if label == "" {
		label = "-"
	}
	if !logging.IsTerminal(out) {
		return label
	}
	var colors text.Colors
	switch status {
	case ledger.StatusUploaded:
		colors = text.Colors{text.FgGreen}
	case ledger.StatusAssembled:
		colors = text.Colors{text.FgCyan}
	case ledger.StatusFailed:
		colors = text.Colors{text.FgRed}
	case ledger.StatusReview:
		colors = text.Colors{text.FgYellow}
	case ledger.StatusAssembling, ledger.StatusUploading:
		colors = text.Colors{text.FgBlue}
	default:
		return label
	}
	return colors.Sprint(label)
}
