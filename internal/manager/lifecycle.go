package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/pmr/internal/config"
	"github.com/loykin/pmr/internal/history"
	"github.com/loykin/pmr/internal/process"
	"github.com/loykin/pmr/internal/registry"
)

// StartRequest mirrors the start command line.
type StartRequest struct {
	Target     string
	Name       string
	Namespace  string
	ConfigPath string
	Args       []string
}

// RestartRequest mirrors the restart command line. Namespace, ConfigPath and
// Args only matter when Target matches nothing and a fresh start happens.
type RestartRequest struct {
	Target     string
	Namespace  string
	ConfigPath string
	Args       []string
}

// Start launches an existing record when Target resolves to one, and
// registers and launches a new program otherwise.
func (m *Manager) Start(ctx context.Context, req StartRequest) (registry.Record, error) {
	if req.Target == "" && req.ConfigPath == "" {
		return registry.Record{}, ErrNoTarget
	}
	if req.Target != "" {
		rec, ok, err := m.store.Resolve(req.Target)
		if err != nil {
			return registry.Record{}, err
		}
		if ok {
			return m.startExisting(ctx, rec)
		}
	}
	return m.startFresh(ctx, req)
}

func (m *Manager) startExisting(ctx context.Context, rec registry.Record) (registry.Record, error) {
	if rec.Status == registry.StatusRunning {
		if !rec.Live() || m.host.IsAlive(rec.PID) {
			return rec, fmt.Errorf("%w: %s (id %d)", ErrAlreadyRunning, rec.Name, rec.ID)
		}
		// stale running record; fall through to a fresh launch below
	}
	if rec.PID != 0 {
		stopped, err := m.stopRecord(ctx, rec)
		if err != nil && !errors.Is(err, ErrAlreadyStopped) {
			return rec, err
		}
		rec = stopped
	}
	pid, err := m.spawn(rec)
	if err != nil {
		m.log.Error("spawn failed", "id", rec.ID, "name", rec.Name, "program", rec.Program, "error", err)
		m.emit(ctx, history.EventSpawnFailed, rec, err)
		return rec, err
	}
	if err := m.store.UpdateStatus(rec.ID, pid, registry.StatusRunning); err != nil {
		return rec, err
	}
	rec = m.current(rec.ID, rec)
	m.log.Info("process started", "id", rec.ID, "name", rec.Name, "pid", pid)
	m.emit(ctx, history.EventStart, rec, nil)
	m.publish()
	return rec, nil
}

func (m *Manager) startFresh(ctx context.Context, req StartRequest) (registry.Record, error) {
	var desc config.Descriptor
	if req.ConfigPath != "" {
		d, err := config.LoadDescriptor(req.ConfigPath)
		if err != nil {
			return registry.Record{}, err
		}
		desc = d
	}
	name := effectiveName(req.Name, req.Target, desc.Name)

	recs, err := m.store.List()
	if err != nil {
		return registry.Record{}, err
	}
	for _, r := range recs {
		if r.Name == name {
			return r, fmt.Errorf("%w: %s (id %d)", ErrNameExists, name, r.ID)
		}
	}

	program, args := req.Target, req.Args
	if req.ConfigPath != "" {
		program = desc.Program
		args = append(append([]string(nil), desc.Args...), req.Args...)
	}
	wd, err := m.getwd()
	if err != nil {
		return registry.Record{}, fmt.Errorf("resolve working directory: %w", err)
	}

	id, err := m.store.Add(name, req.Namespace, wd, program, 0, registry.StatusStarting, args)
	if errors.Is(err, registry.ErrNameTaken) {
		return registry.Record{}, fmt.Errorf("%w: %s", ErrNameExists, name)
	}
	if err != nil {
		return registry.Record{}, err
	}
	rec := m.current(id, registry.Record{ID: id, Name: name, Program: program, Args: args, WorkDir: wd, Status: registry.StatusStarting})
	m.log.Debug("process registered", "id", id, "name", name, "program", program)

	pid, err := m.spawn(rec)
	if err != nil {
		// the record stays in starting with pid 0 so its log path remains inspectable
		m.log.Error("spawn failed", "id", id, "name", name, "program", program, "error", err)
		m.emit(ctx, history.EventSpawnFailed, rec, err)
		m.publish()
		return rec, err
	}
	if err := m.store.UpdateStatus(id, pid, registry.StatusRunning); err != nil {
		return rec, err
	}
	rec = m.current(id, rec)
	m.log.Info("process started", "id", id, "name", name, "pid", pid)
	m.emit(ctx, history.EventStart, rec, nil)
	m.publish()
	return rec, nil
}

func effectiveName(explicit, target, fromConfig string) string {
	for _, n := range []string{explicit, target, fromConfig} {
		if n != "" {
			return n
		}
	}
	return "unnamed"
}

// Stop terminates the process behind target and marks it stopped.
func (m *Manager) Stop(ctx context.Context, target string) (registry.Record, error) {
	rec, err := m.resolve(target)
	if err != nil {
		return rec, err
	}
	return m.stopRecord(ctx, rec)
}

func (m *Manager) stopRecord(ctx context.Context, rec registry.Record) (registry.Record, error) {
	if rec.PID == 0 {
		if rec.Status != registry.StatusStopped {
			ok, err := m.store.MarkStoppedIf(rec.ID, 0)
			if err != nil {
				return rec, err
			}
			if !ok {
				return m.changed(rec)
			}
			rec.Status = registry.StatusStopped
			m.publish()
		}
		return rec, fmt.Errorf("%w: %s (id %d)", ErrAlreadyStopped, rec.Name, rec.ID)
	}
	pid := rec.PID
	if m.host.IsAlive(pid) {
		if err := m.host.Terminate(pid); err != nil {
			m.log.Error("terminate failed", "id", rec.ID, "pid", pid, "error", err)
			return rec, &SignalError{ID: rec.ID, PID: pid, Err: err}
		}
		m.log.Info("process stopped", "id", rec.ID, "name", rec.Name, "pid", pid)
	} else {
		m.log.Info("process already gone, marking stopped", "id", rec.ID, "name", rec.Name, "pid", pid)
	}
	ok, err := m.store.MarkStoppedIf(rec.ID, pid)
	if err != nil {
		return rec, err
	}
	if !ok {
		return m.changed(rec)
	}
	rec.PID, rec.Status = 0, registry.StatusStopped
	m.emit(ctx, history.EventStop, rec, nil)
	m.publish()
	return rec, nil
}

// changed reports a record that another invocation rewrote while this one
// was stopping it. The stored record wins.
func (m *Manager) changed(rec registry.Record) (registry.Record, error) {
	cur := m.current(rec.ID, rec)
	m.log.Warn("record changed concurrently, leaving it as stored", "id", rec.ID, "pid", rec.PID, "stored_pid", cur.PID)
	return cur, fmt.Errorf("%w: %s (id %d)", ErrRecordChanged, rec.Name, rec.ID)
}

// Restart stops and relaunches the record behind Target with the program,
// args and workdir it captured at creation. Unknown targets start fresh.
func (m *Manager) Restart(ctx context.Context, req RestartRequest) (registry.Record, error) {
	if req.Target != "" {
		rec, ok, err := m.store.Resolve(req.Target)
		if err != nil {
			return registry.Record{}, err
		}
		if ok {
			return m.restartExisting(ctx, rec)
		}
	}
	return m.Start(ctx, StartRequest{
		Target:     req.Target,
		Namespace:  req.Namespace,
		ConfigPath: req.ConfigPath,
		Args:       req.Args,
	})
}

func (m *Manager) restartExisting(ctx context.Context, rec registry.Record) (registry.Record, error) {
	stopped, err := m.stopRecord(ctx, rec)
	if err != nil && !errors.Is(err, ErrAlreadyStopped) {
		return rec, err
	}
	rec = stopped
	pid, err := m.spawn(rec)
	if err != nil {
		m.log.Error("respawn failed", "id", rec.ID, "name", rec.Name, "program", rec.Program, "error", err)
		m.emit(ctx, history.EventSpawnFailed, rec, err)
		return rec, err
	}
	if err := m.store.UpdateStatus(rec.ID, pid, registry.StatusRunning); err != nil {
		return rec, err
	}
	if err := m.store.IncrementRestarts(rec.ID); err != nil {
		return rec, err
	}
	rec = m.current(rec.ID, rec)
	m.log.Info("process restarted", "id", rec.ID, "name", rec.Name, "pid", pid, "restarts", rec.Restarts)
	m.emit(ctx, history.EventRestart, rec, nil)
	m.publish()
	return rec, nil
}

// Delete stops the process behind target if it is live and removes the
// record. A failed terminate aborts the delete.
func (m *Manager) Delete(ctx context.Context, target string) (registry.Record, error) {
	rec, err := m.resolve(target)
	if err != nil {
		return rec, err
	}
	if rec.Live() {
		stopped, err := m.stopRecord(ctx, rec)
		if err != nil && !errors.Is(err, ErrAlreadyStopped) {
			return rec, err
		}
		rec = stopped
	}
	ok, err := m.store.DeleteIf(rec.ID, rec.PID)
	if err != nil {
		return rec, err
	}
	if !ok {
		return m.changed(rec)
	}
	m.log.Info("process deleted", "id", rec.ID, "name", rec.Name)
	m.emit(ctx, history.EventDelete, rec, nil)
	m.publish()
	return rec, nil
}

// spawn launches rec with both output streams appended to its log file.
func (m *Manager) spawn(rec registry.Record) (int, error) {
	out, err := m.logs.OpenAppend(rec.ID)
	if err != nil {
		return 0, &SpawnError{ID: rec.ID, Program: rec.Program, Err: err}
	}
	defer func() { _ = out.Close() }()
	pid, err := m.spawner.Spawn(process.Spec{
		Program: rec.Program,
		Args:    rec.Args,
		WorkDir: rec.WorkDir,
		Output:  out,
	})
	if err != nil {
		return 0, &SpawnError{ID: rec.ID, Program: rec.Program, Err: err}
	}
	return pid, nil
}
