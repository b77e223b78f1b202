package pmr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/pmr/internal/config"
	"github.com/loykin/pmr/internal/history"
	"github.com/loykin/pmr/internal/history/factory"
	"github.com/loykin/pmr/internal/logger"
	"github.com/loykin/pmr/internal/manager"
	"github.com/loykin/pmr/internal/metrics"
	"github.com/loykin/pmr/internal/registry"
	"github.com/loykin/pmr/internal/report"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = registry.Record

type Status = registry.Status

const (
	StatusStarting = registry.StatusStarting
	StatusRunning  = registry.StatusRunning
	StatusStopped  = registry.StatusStopped
)

type Settings = config.Settings

type StartRequest = manager.StartRequest

type RestartRequest = manager.RestartRequest

type Event = history.Event

type Row = report.Row

type Format = report.Format

const (
	FormatTable = report.FormatTable
	FormatJSON  = report.FormatJSON
	FormatYAML  = report.FormatYAML
)

type (
	NotFoundError = manager.NotFoundError
	SpawnError    = manager.SpawnError
	SignalError   = manager.SignalError
	ParseError    = config.ParseError
)

var (
	ErrAlreadyRunning = manager.ErrAlreadyRunning
	ErrAlreadyStopped = manager.ErrAlreadyStopped
	ErrNameExists     = manager.ErrNameExists
	ErrNoTarget       = manager.ErrNoTarget
	ErrRecordChanged  = manager.ErrRecordChanged
	ErrNoLogFile      = logger.ErrNoLogFile
	// ErrNoHistory is returned by History when no readable sink is configured.
	ErrNoHistory = errors.New("history is disabled or its sink cannot be queried")
)

// IsWarning reports whether err is a notice rather than a failure.
func IsWarning(err error) bool { return manager.IsWarning(err) }

// LoadSettings resolves the state directory (flag, PMR_HOME, ~/.pmr) and
// reads its config.toml.
func LoadSettings(homeFlag string) (Settings, error) {
	home, err := config.ResolveHome(homeFlag)
	if err != nil {
		return Settings{}, err
	}
	return config.Load(home)
}

func ParseFormat(s string) (Format, error) { return report.ParseFormat(s) }

func Render(w io.Writer, f Format, rows []Row) error { return report.Render(w, f, rows) }

func RenderEvents(w io.Writer, f Format, events []Event) error {
	return report.RenderEvents(w, f, events)
}

// Supervisor is a thin facade over internal/manager bound to one state
// directory. It provides a stable public API for embedding.
type Supervisor struct {
	inner    *manager.Manager
	settings Settings
	logs     logger.Sink
	hist     history.Sink
	log      *slog.Logger
	closer   io.Closer
}

// Open wires a Supervisor from settings. console receives the supervisor's
// own diagnostics; nil keeps them in the log file only.
func Open(s Settings, console io.Writer) (*Supervisor, error) {
	if s.Home == "" {
		return nil, errors.New("settings without home directory")
	}
	invocation := uuid.NewString()
	log, closer := logger.New(s.Log, console)
	log = log.With("invocation", invocation)

	store, err := registry.Open(s.RegistryPath())
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	var hist history.Sink = history.Nop{}
	if s.History.Enabled && s.History.DSN != "" {
		if sink, err := factory.NewSinkFromDSN(s.History.DSN); err != nil {
			log.Warn("history sink unavailable", "dsn", s.History.DSN, "error", err)
		} else {
			hist = sink
		}
	}

	logs := logger.NewSink(s.LogDir())
	if s.Tail.PollInterval > 0 {
		logs.PollInterval = s.Tail.PollInterval
	}

	inner, err := manager.New(manager.Options{
		Store:      store,
		Logs:       logs,
		History:    hist,
		Logger:     log,
		Invocation: invocation,
		Textfile:   s.Metrics.Textfile,
	})
	if err != nil {
		_ = hist.Close()
		_ = closer.Close()
		return nil, err
	}
	return &Supervisor{inner: inner, settings: s, logs: logs, hist: hist, log: log, closer: closer}, nil
}

func (s *Supervisor) Close() error {
	return errors.Join(s.hist.Close(), s.closer.Close())
}

func (s *Supervisor) Settings() Settings { return s.settings }
func (s *Supervisor) Invocation() string { return s.inner.Invocation() }

func (s *Supervisor) Start(ctx context.Context, r StartRequest) (Record, error) {
	return s.inner.Start(ctx, r)
}
func (s *Supervisor) Restart(ctx context.Context, r RestartRequest) (Record, error) {
	return s.inner.Restart(ctx, r)
}
func (s *Supervisor) Stop(ctx context.Context, target string) (Record, error) {
	return s.inner.Stop(ctx, target)
}
func (s *Supervisor) Delete(ctx context.Context, target string) (Record, error) {
	return s.inner.Delete(ctx, target)
}
func (s *Supervisor) List(ctx context.Context) ([]Record, error) { return s.inner.List(ctx) }
func (s *Supervisor) Reconcile(ctx context.Context) error        { return s.inner.Reconcile(ctx) }

// Rows reconciles the registry and joins it with live OS stats.
func (s *Supervisor) Rows(ctx context.Context) ([]Row, error) {
	recs, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	return report.Rows(recs, metrics.OSSampler{}, time.Now()), nil
}

// SystemRows lists every OS process, not just supervised ones.
func (s *Supervisor) SystemRows() ([]Row, error) {
	procs, err := metrics.SystemProcesses()
	if err != nil {
		return nil, err
	}
	return report.SystemRows(procs, time.Now()), nil
}

// LogPath returns the output file of target.
func (s *Supervisor) LogPath(target string) (string, error) {
	p, _, err := s.inner.LogPath(target)
	return p, err
}

// Follow streams lines appended to target's log until ctx is cancelled.
func (s *Supervisor) Follow(ctx context.Context, target string, w io.Writer) error {
	_, rec, err := s.inner.LogPath(target)
	if err != nil {
		return err
	}
	s.log.Debug("following log", "id", rec.ID, "path", s.logs.Path(rec.ID))
	return s.logs.Follow(ctx, rec.ID, w)
}

// History returns recorded lifecycle events, newest first. An empty target
// means every record; a target that no longer resolves is tried as an id.
func (s *Supervisor) History(ctx context.Context, target string, limit int) ([]Event, error) {
	reader, ok := s.hist.(history.Reader)
	if !ok {
		return nil, ErrNoHistory
	}
	q := history.Query{Limit: limit}
	if target != "" {
		rec, found, err := s.inner.Store().Resolve(target)
		switch {
		case err != nil:
			return nil, err
		case found:
			q.RecordID = rec.ID
		default:
			id, convErr := strconv.Atoi(target)
			if convErr != nil || id <= 0 {
				return nil, &NotFoundError{Target: target}
			}
			q.RecordID = id
		}
	}
	events, err := reader.Events(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return events, nil
}
