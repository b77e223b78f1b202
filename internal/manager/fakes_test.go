package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loykin/pmr/internal/history"
	"github.com/loykin/pmr/internal/logger"
	"github.com/loykin/pmr/internal/process"
	"github.com/loykin/pmr/internal/registry"
)

type fakeHost struct {
	mu         sync.Mutex
	alive      map[int]bool
	killErr    error
	terminated []int
	// onCheck runs after each liveness check, outside the lock.
	onCheck func(pid int)
}

func newFakeHost() *fakeHost { return &fakeHost{alive: map[int]bool{}} }

func (h *fakeHost) IsAlive(pid int) bool {
	h.mu.Lock()
	alive, hook := h.alive[pid], h.onCheck
	h.mu.Unlock()
	if hook != nil {
		hook(pid)
	}
	return alive
}

func (h *fakeHost) Terminate(pid int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.killErr != nil {
		return h.killErr
	}
	h.terminated = append(h.terminated, pid)
	delete(h.alive, pid)
	return nil
}

func (h *fakeHost) setAlive(pid int, alive bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive[pid] = alive
}

type fakeSpawner struct {
	host    *fakeHost
	nextPID int
	err     error
	specs   []process.Spec
}

func (s *fakeSpawner) Spawn(spec process.Spec) (int, error) {
	s.specs = append(s.specs, spec)
	if s.err != nil {
		return 0, s.err
	}
	s.nextPID++
	if spec.Output != nil {
		_, _ = fmt.Fprintf(spec.Output, "spawned %s\n", spec.Program)
	}
	s.host.setAlive(s.nextPID, true)
	return s.nextPID, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
}

func (r *recordingSink) Send(_ context.Context, e history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) types() []history.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	m       *Manager
	store   *registry.Store
	host    *fakeHost
	spawner *fakeSpawner
	hist    *recordingSink
	home    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	st, err := registry.Open(filepath.Join(home, "dump.json"))
	require.NoError(t, err)
	host := newFakeHost()
	sp := &fakeSpawner{host: host, nextPID: 1000}
	hist := &recordingSink{}
	m, err := New(Options{
		Store:      st,
		Logs:       logger.NewSink(filepath.Join(home, "logs")),
		Host:       host,
		Spawner:    sp,
		History:    hist,
		Invocation: "test-invocation",
	})
	require.NoError(t, err)
	m.getwd = func() (string, error) { return "/srv/app", nil }
	return &fixture{m: m, store: st, host: host, spawner: sp, hist: hist, home: home}
}

func (f *fixture) get(t *testing.T, id int) registry.Record {
	t.Helper()
	rec, ok, err := f.store.Get(id)
	require.NoError(t, err)
	require.True(t, ok, "record %d missing", id)
	return rec
}

var errBoom = errors.New("boom")
