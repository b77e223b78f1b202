package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/loykin/pmr/internal/metrics"
	"github.com/loykin/pmr/internal/registry"
)

// Format selects how rows are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json, yaml and yml (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Row is one line of the process listing.
type Row struct {
	ID         int     `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Namespace  string  `json:"namespace" yaml:"namespace"`
	PID        int     `json:"pid" yaml:"pid"`
	Uptime     string  `json:"uptime" yaml:"uptime"`
	Restarts   int     `json:"restarts" yaml:"restarts"`
	Status     string  `json:"status" yaml:"status"`
	CPUPercent float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb" yaml:"memory_mb"`
	User       string  `json:"user" yaml:"user"`
}

// Rows joins registry records with live OS stats. Records without a pid, or
// whose pid cannot be sampled, get zero usage and "N/A" as user.
func Rows(records []registry.Record, s metrics.Sampler, now time.Time) []Row {
	out := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{
			ID:        r.ID,
			Name:      r.Name,
			Namespace: r.Namespace,
			PID:       r.PID,
			Uptime:    FormatUptime(0),
			Restarts:  r.Restarts,
			Status:    string(r.Status),
			User:      "N/A",
		}
		if r.Live() && s != nil {
			if st, err := s.Sample(r.PID); err == nil {
				row.CPUPercent = st.CPUPercent
				row.MemoryMB = st.MemoryMB
				if st.User != "" {
					row.User = st.User
				}
				if !st.StartedAt.IsZero() {
					row.Uptime = FormatUptime(now.Sub(st.StartedAt))
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// SystemRows converts an OS process listing into rows. System processes are
// not registry records, so they carry id 0 and the default namespace.
func SystemRows(procs []metrics.Stats, now time.Time) []Row {
	out := make([]Row, 0, len(procs))
	for _, p := range procs {
		row := Row{
			PID:        p.PID,
			Name:       p.Name,
			Namespace:  registry.DefaultNamespace,
			Uptime:     FormatUptime(0),
			Status:     string(registry.StatusRunning),
			CPUPercent: p.CPUPercent,
			MemoryMB:   p.MemoryMB,
			User:       p.User,
		}
		if row.User == "" {
			row.User = "N/A"
		}
		if !p.StartedAt.IsZero() {
			row.Uptime = FormatUptime(now.Sub(p.StartedAt))
		}
		out = append(out, row)
	}
	return out
}

// FormatUptime renders d as "1d 2h 3m", "5m 7s" or "45s". Seconds are only
// shown below one hour.
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	rest := secs % 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	if rest > 0 && days == 0 && hours == 0 {
		parts = append(parts, strconv.FormatInt(rest, 10)+"s")
	}
	return strings.Join(parts, " ")
}

// Render writes rows to w in format f.
func Render(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []Row{}
		}
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		_, err := fmt.Fprintln(w, Table(rows))
		return err
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusColors = map[string]lipgloss.Color{
		string(registry.StatusRunning):  lipgloss.Color("2"),
		string(registry.StatusStarting): lipgloss.Color("3"),
		string(registry.StatusStopped):  lipgloss.Color("1"),
	}
)

var headers = []string{"id", "name", "namespace", "pid", "uptime", "restarts", "status", "cpu", "mem", "user"}

const statusCol = 6

// Table renders rows as a bordered table with a colored status column.
func Table(rows []Row) string {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			strconv.Itoa(r.ID),
			r.Name,
			r.Namespace,
			strconv.Itoa(r.PID),
			r.Uptime,
			strconv.Itoa(r.Restarts),
			r.Status,
			fmt.Sprintf("%.1f%%", r.CPUPercent),
			fmt.Sprintf("%.1f MB", r.MemoryMB),
			r.User,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(cells) {
				if c, ok := statusColors[cells[row][statusCol]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	return t.String()
}
