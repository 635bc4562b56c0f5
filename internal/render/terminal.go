package render

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/KaramelBytes/dataviz-agent/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteTerminal prints a report for a terminal. Images and chart specs are
// written to outDir when it is set; otherwise only their captions are shown.
func WriteTerminal(w io.Writer, rep Report, outDir string) error {
	if outDir != "" {
		if err := utils.EnsureDir(outDir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	for _, d := range rep.Displays {
		switch d.Kind {
		case DisplayImage:
			line := d.Image.Caption
			if outDir != "" {
				path := filepath.Join(outDir, fmt.Sprintf("visualization-%d.%s", d.Position, imageExt(d.Image.Format)))
				if err := utils.SafeWriteFile(path, d.Image.Data); err != nil {
					return fmt.Errorf("write image: %w", err)
				}
				line += " -> " + path
			}
			_, _ = fmt.Fprintf(w, "🖼  %s (%dx%d)\n", line, d.Image.Width, d.Image.Height)
		case DisplayChart:
			line := fmt.Sprintf("📈 %s chart: %s", d.Chart.Type, d.Chart.Title)
			if outDir != "" {
				path := filepath.Join(outDir, fmt.Sprintf("chart-%d.json", d.Position))
				if err := utils.SafeWriteFile(path, d.Chart.Spec); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				line += " -> " + path
			}
			_, _ = fmt.Fprintln(w, line)
		case DisplayTable:
			writeTable(w, d.Table)
		case DisplayMetric:
			_, _ = fmt.Fprintf(w, "%s: %s\n", d.Metric.Label, d.Metric.Value)
		default:
			_, _ = fmt.Fprintln(w, d.Text)
		}
	}
	for _, warn := range rep.Warnings {
		_, _ = fmt.Fprintf(w, "⚠ Warning: %s\n", warn)
	}
	return nil
}

func writeTable(w io.Writer, t *TableDisplay) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = t.Grid

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		tw.AppendRow(row)
	}
	tw.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(t.Rows))
}

func imageExt(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "svg":
		return "svg"
	default:
		return "png"
	}
}
