package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/loykin/pmr/internal/history"
)

var eventHeaders = []string{"time", "event", "id", "name", "pid", "status", "restarts", "error"}

// RenderEvents writes history events to w in format f.
func RenderEvents(w io.Writer, f Format, events []history.Event) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if events == nil {
			events = []history.Event{}
		}
		return enc.Encode(events)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(events); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		cells := make([][]string, 0, len(events))
		for _, e := range events {
			cells = append(cells, []string{
				e.OccurredAt.Local().Format(time.DateTime),
				string(e.Type),
				strconv.Itoa(e.Record.ID),
				e.Record.Name,
				strconv.Itoa(e.Record.PID),
				string(e.Record.Status),
				strconv.Itoa(e.Record.Restarts),
				e.Error,
			})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			Headers(eventHeaders...).
			Rows(cells...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		_, err := fmt.Fprintln(w, t.String())
		return err
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}
