package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	s, err := Load(home)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Home != home {
		t.Fatalf("home: %q", s.Home)
	}
	if s.Log.Level != "warn" || !s.Log.Color || s.Log.File.Path != filepath.Join(home, "pmr.log") {
		t.Fatalf("unexpected log defaults: %+v", s.Log)
	}
	if !s.History.Enabled || s.History.DSN != "sqlite://"+filepath.Join(home, "history.db") {
		t.Fatalf("unexpected history defaults: %+v", s.History)
	}
	if s.Metrics.Textfile != "" {
		t.Fatalf("metrics textfile should be disabled by default")
	}
	if s.Tail.PollInterval != 100*time.Millisecond {
		t.Fatalf("poll interval: %v", s.Tail.PollInterval)
	}
	if s.RegistryPath() != filepath.Join(home, "dump.json") || s.LogDir() != filepath.Join(home, "logs") {
		t.Fatalf("unexpected paths: %s %s", s.RegistryPath(), s.LogDir())
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "config.toml", `
[log]
level = "debug"
color = false

[history]
dsn = "postgres://u:p@localhost:5432/pmr?sslmode=disable"

[metrics]
textfile = "/var/lib/node_exporter/pmr.prom"

[tail]
poll_interval = "250ms"
`)
	t.Setenv("PMR_LOG_LEVEL", "error")
	t.Setenv("PMR_HISTORY_ENABLED", "false")

	s, err := Load(home)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Log.Level != "error" {
		t.Fatalf("env should override file, got level %q", s.Log.Level)
	}
	if s.Log.Color {
		t.Fatalf("file should disable color")
	}
	if s.History.Enabled {
		t.Fatalf("env should disable history")
	}
	if s.History.DSN != "postgres://u:p@localhost:5432/pmr?sslmode=disable" {
		t.Fatalf("dsn: %q", s.History.DSN)
	}
	if s.Metrics.Textfile != "/var/lib/node_exporter/pmr.prom" {
		t.Fatalf("textfile: %q", s.Metrics.Textfile)
	}
	if s.Tail.PollInterval != 250*time.Millisecond {
		t.Fatalf("poll interval: %v", s.Tail.PollInterval)
	}
}

func TestLoad_BrokenFile(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "config.toml", "[log\nlevel=")
	_, err := Load(home)
	var pErr *ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestResolveHome(t *testing.T) {
	flagDir := t.TempDir()
	envDir := t.TempDir()
	t.Setenv("PMR_HOME", envDir)

	got, err := ResolveHome(flagDir)
	if err != nil || got != flagDir {
		t.Fatalf("flag should win: %q %v", got, err)
	}
	got, err = ResolveHome("")
	if err != nil || got != envDir {
		t.Fatalf("env should be used: %q %v", got, err)
	}
	t.Setenv("PMR_HOME", "")
	got, err = ResolveHome("")
	if err != nil || filepath.Base(got) != ".pmr" {
		t.Fatalf("default should be ~/.pmr: %q %v", got, err)
	}
}
