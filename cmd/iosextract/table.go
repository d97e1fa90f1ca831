package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/ilexum-group/iosextract/pkg/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, rounded bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if rounded {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printSummary renders the per-pass and per-phase outcome of a run.
func printSummary(out io.Writer, report *models.ExtractionReport) {
	rounded := isTerminal(out)

	passRows := make([][]string, 0, len(report.Passes))
	for _, p := range report.Passes {
		passRows = append(passRows, []string{
			p.Name,
			strconv.Itoa(p.Entries),
			strconv.Itoa(p.Linked),
			strconv.Itoa(p.Existing),
			strconv.Itoa(p.Missing),
			strconv.Itoa(len(p.Errors)),
		})
	}
	_, _ = fmt.Fprintln(out, renderTable(
		[]string{"Pass", "Entries", "Linked", "Existing", "Missing", "Errors"},
		passRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		rounded,
	))

	phaseRows := make([][]string, 0, len(report.Phases))
	for _, p := range report.Phases {
		phaseRows = append(phaseRows, []string{p.Name, p.Status, strconv.Itoa(p.Written), p.Detail})
	}
	_, _ = fmt.Fprintln(out, renderTable(
		[]string{"Phase", "Status", "Written", "Detail"},
		phaseRows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		rounded,
	))

	if report.DryRun {
		_, _ = fmt.Fprintln(out, "Dry run: nothing was written.")
	}
}
