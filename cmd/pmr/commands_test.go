package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/pmr"
)

type cli struct {
	t    *testing.T
	home string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("PMR_HOME", "")
	t.Setenv("PMR_METRICS_TEXTFILE", "")
	return &cli{t: t, home: t.TempDir()}
}

// run executes one invocation and returns stdout, stderr and the error.
func (c *cli) run(ctx context.Context, args ...string) (string, string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	root := buildRoot(&out, &errOut)
	root.SetArgs(append([]string{"--home", c.home}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func (c *cli) rows(ctx context.Context) []pmr.Row {
	c.t.Helper()
	out, _, err := c.run(ctx, "list", "-o", "json")
	require.NoError(c.t, err)
	var rows []pmr.Row
	require.NoError(c.t, json.Unmarshal([]byte(out), &rows))
	return rows
}

func requireSleep(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix sleep")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
}

func TestCLI_Lifecycle(t *testing.T) {
	requireSleep(t)
	c := newCLI(t)
	ctx := context.Background()
	t.Cleanup(func() { _, _, _ = c.run(ctx, "delete", "1") })

	out, _, err := c.run(ctx, "start", "--name", "nap", "sleep", "30")
	require.NoError(t, err)
	assert.Contains(t, out, `started "nap"`)
	assert.Contains(t, out, "nap", "list printed after start")

	rows := c.rows(ctx)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].ID)
	assert.Equal(t, "running", rows[0].Status)
	assert.Greater(t, rows[0].PID, 0)

	out, _, err = c.run(ctx, "restart", "nap")
	require.NoError(t, err)
	assert.Contains(t, out, "restarts 1")

	_, _, err = c.run(ctx, "stop", "1")
	require.NoError(t, err)
	rows = c.rows(ctx)
	require.Len(t, rows, 1)
	assert.Equal(t, "stopped", rows[0].Status)
	assert.Zero(t, rows[0].PID)

	// second stop is a warning, not a failure
	_, errOut, err := c.run(ctx, "stop", "nap")
	require.NoError(t, err)
	assert.Contains(t, errOut, "already stopped")

	out, _, err = c.run(ctx, "rm", "nap")
	require.NoError(t, err)
	assert.Contains(t, out, `deleted "nap"`)
	assert.Empty(t, c.rows(ctx))

	out, _, err = c.run(ctx, "history", "-o", "json")
	require.NoError(t, err)
	var events []pmr.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.NotEmpty(t, events)
	assert.Equal(t, "delete", string(events[0].Type))

	_, err = os.Stat(filepath.Join(c.home, "dump.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(c.home, "logs", "1.log"))
	assert.NoError(t, err)
}

func TestCLI_WarningsExitZero(t *testing.T) {
	c := newCLI(t)
	ctx := context.Background()
	for _, args := range [][]string{
		{"stop", "ghost"},
		{"delete", "42"},
		{"log", "ghost"},
		{"history", "ghost"},
	} {
		_, errOut, err := c.run(ctx, args...)
		assert.NoError(t, err, "%v", args)
		assert.Contains(t, errOut, "not found", "%v", args)
	}
}

func TestCLI_StartNeedsTargetOrConfig(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run(context.Background(), "start")
	assert.ErrorIs(t, err, pmr.ErrNoTarget)
}

func TestCLI_SpawnFailureIsAnError(t *testing.T) {
	c := newCLI(t)
	ctx := context.Background()
	_, _, err := c.run(ctx, "start", "pmr-no-such-program-xyz")
	var se *pmr.SpawnError
	require.ErrorAs(t, err, &se)

	rows := c.rows(ctx)
	require.Len(t, rows, 1)
	assert.Equal(t, "starting", rows[0].Status)
}

func TestCLI_DescriptorAndDuplicateName(t *testing.T) {
	requireSleep(t)
	c := newCLI(t)
	ctx := context.Background()
	t.Cleanup(func() { _, _, _ = c.run(ctx, "delete", "svc") })

	cfg := filepath.Join(t.TempDir(), "svc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("name: svc\nprogram: sleep\nargs: [\"30\"]\n"), 0o600))

	_, _, err := c.run(ctx, "start", "--config", cfg)
	require.NoError(t, err)

	_, errOut, err := c.run(ctx, "start", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, errOut, "already exists")
	assert.Len(t, c.rows(ctx), 1)

	_, _, err = c.run(ctx, "start", "--config", filepath.Join(t.TempDir(), "missing.json"))
	var pe *pmr.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestCLI_LogStopsOnCancel(t *testing.T) {
	requireSleep(t)
	c := newCLI(t)
	t.Cleanup(func() { _, _, _ = c.run(context.Background(), "delete", "1") })
	_, _, err := c.run(context.Background(), "start", "sleep", "30")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := c.run(ctx, "logs", "sleep")
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("log did not return after cancellation")
	}
}

func TestCLI_ListFormats(t *testing.T) {
	c := newCLI(t)
	ctx := context.Background()

	out, _, err := c.run(ctx, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "namespace")

	out, _, err = c.run(ctx, "status", "-o", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	_, _, err = c.run(ctx, "ps", "-o", "xml")
	assert.Error(t, err)
}

func TestCLI_ListSystem(t *testing.T) {
	c := newCLI(t)
	out, _, err := c.run(context.Background(), "list", "--system", "-o", "json")
	require.NoError(t, err)
	var rows []pmr.Row
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	found := false
	for _, r := range rows {
		if r.PID == os.Getpid() {
			found = true
		}
	}
	assert.True(t, found, "current test process missing from system listing")
}
