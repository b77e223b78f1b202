package manager

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/pmr/internal/history"
	"github.com/loykin/pmr/internal/logger"
	"github.com/loykin/pmr/internal/metrics"
	"github.com/loykin/pmr/internal/process"
	"github.com/loykin/pmr/internal/registry"
)

// Options wires a Manager. Store and Logs are required; the rest default to
// the host OS, a no-op history and slog.Default.
type Options struct {
	Store   *registry.Store
	Logs    logger.Sink
	Host    process.Host
	Spawner process.Spawner
	History history.Sink
	Logger  *slog.Logger
	// Invocation identifies this run in logs and history. Generated when empty.
	Invocation string
	// Textfile, when set, receives a Prometheus snapshot after each mutation.
	Textfile string
}

// Manager drives records through starting, running and stopped. It holds no
// state of its own between calls; the registry is the source of truth.
type Manager struct {
	store      *registry.Store
	logs       logger.Sink
	host       process.Host
	spawner    process.Spawner
	hist       history.Sink
	log        *slog.Logger
	invocation string
	textfile   string

	now   func() time.Time
	getwd func() (string, error)
}

// New builds a Manager; Store and Logs are required, the rest defaults.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("manager: store is required")
	}
	if opts.Logs.Dir == "" {
		return nil, errors.New("manager: log directory is required")
	}
	m := &Manager{
		store:      opts.Store,
		logs:       opts.Logs,
		host:       opts.Host,
		spawner:    opts.Spawner,
		hist:       opts.History,
		log:        opts.Logger,
		invocation: opts.Invocation,
		textfile:   opts.Textfile,
		now:        time.Now,
		getwd:      os.Getwd,
	}
	if m.host == nil {
		m.host = process.NewHost()
	}
	if m.spawner == nil {
		m.spawner = process.ExecSpawner{}
	}
	if m.hist == nil {
		m.hist = history.Nop{}
	}
	if m.invocation == "" {
		m.invocation = uuid.NewString()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("invocation", m.invocation)
	return m, nil
}

// Invocation returns the id attached to this manager's logs and events.
func (m *Manager) Invocation() string { return m.invocation }

// Store exposes the underlying registry.
func (m *Manager) Store() *registry.Store { return m.store }

// List reconciles liveness and returns every record.
func (m *Manager) List(ctx context.Context) ([]registry.Record, error) {
	if err := m.Reconcile(ctx); err != nil {
		return nil, err
	}
	return m.store.List()
}

// Reconcile writes back stopped/0 for every record whose pid is no longer
// alive.
func (m *Manager) Reconcile(ctx context.Context) error {
	recs, err := m.store.List()
	if err != nil {
		return err
	}
	healed := 0
	for _, r := range recs {
		if !r.Live() || m.host.IsAlive(r.PID) {
			continue
		}
		ok, err := m.store.MarkStoppedIf(r.ID, r.PID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		m.log.Info("process no longer alive, marked stopped", "id", r.ID, "name", r.Name, "pid", r.PID)
		r.PID, r.Status = 0, registry.StatusStopped
		m.emit(ctx, history.EventReconcile, r, nil)
		healed++
	}
	if healed > 0 {
		m.publish()
	}
	return nil
}

// LogPath resolves target to its log file.
func (m *Manager) LogPath(target string) (string, registry.Record, error) {
	rec, err := m.resolve(target)
	if err != nil {
		return "", registry.Record{}, err
	}
	return m.logs.Path(rec.ID), rec, nil
}

func (m *Manager) resolve(target string) (registry.Record, error) {
	rec, ok, err := m.store.Resolve(target)
	if err != nil {
		return registry.Record{}, err
	}
	if !ok {
		return registry.Record{}, &NotFoundError{Target: target}
	}
	return rec, nil
}

// current re-reads id after a mutation; fallback is returned if it vanished.
func (m *Manager) current(id int, fallback registry.Record) registry.Record {
	rec, ok, err := m.store.Get(id)
	if err != nil || !ok {
		return fallback
	}
	return rec
}

func (m *Manager) emit(ctx context.Context, typ history.EventType, rec registry.Record, cause error) {
	e := history.Event{
		Type:       typ,
		OccurredAt: m.now().UTC(),
		Invocation: m.invocation,
		Record:     rec,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := m.hist.Send(ctx, e); err != nil {
		m.log.Warn("failed to record history event", "event", typ, "id", rec.ID, "error", err)
	}
}

// publish refreshes the metrics textfile, if one is configured.
func (m *Manager) publish() {
	if m.textfile == "" {
		return
	}
	recs, err := m.store.List()
	if err == nil {
		err = metrics.WriteTextfile(m.textfile, recs)
	}
	if err != nil {
		m.log.Warn("failed to write metrics textfile", "path", m.textfile, "error", err)
	}
}
