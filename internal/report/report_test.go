package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/loykin/pmr/internal/metrics"
	"github.com/loykin/pmr/internal/registry"
)

type stubSampler map[int]metrics.Stats

func (s stubSampler) Sample(pid int) (metrics.Stats, error) {
	st, ok := s[pid]
	if !ok {
		return metrics.Stats{}, errors.New("no such process")
	}
	return st, nil
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{time.Hour, "1h"},
		{time.Hour + time.Minute + 30*time.Second, "1h 1m"},
		{26*time.Hour + 3*time.Minute, "1d 2h 3m"},
		{48 * time.Hour, "2d"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatUptime(c.in), c.in.String())
	}
}

func TestRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []registry.Record{
		{ID: 1, Name: "web", Namespace: "default", PID: 10, Status: registry.StatusRunning, Restarts: 2},
		{ID: 2, Name: "idle", Namespace: "batch", Status: registry.StatusStopped},
		{ID: 3, Name: "gone", Namespace: "default", PID: 99, Status: registry.StatusRunning},
	}
	s := stubSampler{10: {PID: 10, CPUPercent: 1.5, MemoryMB: 12.25, User: "svc", StartedAt: now.Add(-90 * time.Second)}}

	rows := Rows(recs, s, now)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{ID: 1, Name: "web", Namespace: "default", PID: 10, Uptime: "1m 30s", Restarts: 2,
		Status: "running", CPUPercent: 1.5, MemoryMB: 12.25, User: "svc"}, rows[0])
	assert.Equal(t, "0s", rows[1].Uptime)
	assert.Equal(t, "N/A", rows[1].User)
	assert.Equal(t, "N/A", rows[2].User, "unsampleable pid")
	assert.Zero(t, rows[2].CPUPercent)
}

func TestSystemRows(t *testing.T) {
	now := time.Now()
	rows := SystemRows([]metrics.Stats{{PID: 1, Name: "init", StartedAt: now.Add(-time.Hour)}}, now)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].ID)
	assert.Equal(t, "init", rows[0].Name)
	assert.Equal(t, "1h", rows[0].Uptime)
	assert.Equal(t, "N/A", rows[0].User)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

var sampleRows = []Row{
	{ID: 1, Name: "web", Namespace: "default", PID: 10, Uptime: "5s", Status: "running", User: "svc"},
	{ID: 2, Name: "idle", Namespace: "default", Uptime: "0s", Status: "stopped", User: "N/A"},
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, sampleRows))
	var got []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleRows, got)

	buf.Reset()
	require.NoError(t, Render(&buf, FormatJSON, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatYAML, sampleRows))
	assert.Contains(t, buf.String(), "name: web")
	var got []Row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleRows, got)
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatTable, sampleRows))
	out := buf.String()
	for _, h := range headers {
		assert.Contains(t, out, h)
	}
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "0.0 MB")

	assert.Error(t, Render(&buf, Format("xml"), sampleRows))
}

func TestTable_Empty(t *testing.T) {
	out := Table(nil)
	assert.Contains(t, out, "namespace")
}
