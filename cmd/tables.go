package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxRowWidth = 80

func writeErrorTable(w io.Writer, title string, errs []domain.RowError) error {
	if _, err := fmt.Fprintf(w, "%s: %d\n", title, len(errs)); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Row", "Column", "Error", "Data"})
	for _, rowErr := range errs {
		t.AppendRow(table.Row{strconv.Itoa(rowErr.RowIndex), strconv.Itoa(rowErr.ColumnIndex), rowErr.Message, rowErr.Row})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: maxRowWidth},
		{Number: 4, WidthMax: maxRowWidth},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func writeStatsTable(w io.Writer, stats []domain.Stat) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Stage", "Elapsed"})
	for _, stat := range stats {
		t.AppendRow(table.Row{stat.Event, stat.Total.Round(time.Millisecond).String()})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
