package registry

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Store is the file-backed process registry. Every call takes the
// cross-process lock, re-reads the document, applies its change and writes
// the whole document back through a temp file and rename.
type Store struct {
	path     string
	lockPath string

	mu sync.Mutex
}

// Open loads the registry document at path, creating an empty one when it
// does not exist yet.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, &StoreIOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	s := &Store{path: path, lockPath: path + ".lock"}
	err := s.withLock(func() error {
		snap, exists, err := s.load()
		if err != nil {
			return err
		}
		if !exists {
			return s.save(snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the registry document location.
func (s *Store) Path() string { return s.path }

// List returns a copy of all records in document order.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.view(func(snap *snapshot) {
		out = snap.copyRecords()
	})
	return out, err
}

// Get returns the record with id.
func (s *Store) Get(id int) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.view(func(snap *snapshot) {
		if i := snap.index(id); i >= 0 {
			rec, found = snap.Processes[i].clone(), true
		}
	})
	return rec, found, err
}

// Resolve looks up target (id or name) against the current document.
func (s *Store) Resolve(target string) (Record, bool, error) {
	recs, err := s.List()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := Resolve(recs, target)
	return rec, ok, nil
}

// Add appends a new record and returns its id. Names are unique; a
// duplicate yields ErrNameTaken and leaves the document unchanged.
func (s *Store) Add(name, namespace, workdir, program string, pid int, status Status, args []string) (int, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	var id int
	err := s.mutate(func(snap *snapshot) (bool, error) {
		for _, p := range snap.Processes {
			if p.Name == name {
				return false, errors.Wrapf(ErrNameTaken, "name %q (id %d)", name, p.ID)
			}
		}
		id = snap.allocID()
		snap.Processes = append(snap.Processes, Record{
			ID:        id,
			PID:       pid,
			Name:      name,
			Namespace: namespace,
			Status:    status,
			Program:   program,
			WorkDir:   workdir,
			Args:      append([]string{}, args...),
		})
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateStatus sets pid and status of record id. Unknown ids are ignored.
func (s *Store) UpdateStatus(id, pid int, status Status) error {
	return s.mutate(func(snap *snapshot) (bool, error) {
		i := snap.index(id)
		if i < 0 {
			return false, nil
		}
		snap.Processes[i].PID = pid
		snap.Processes[i].Status = status
		return true, nil
	})
}

// MarkStoppedIf writes stopped/0 for record id only while its stored pid
// still equals expectPID. It reports whether the write happened; a record
// that is gone or was relaunched by another invocation is left alone.
func (s *Store) MarkStoppedIf(id, expectPID int) (bool, error) {
	var swapped bool
	err := s.mutate(func(snap *snapshot) (bool, error) {
		i := snap.index(id)
		if i < 0 || snap.Processes[i].PID != expectPID {
			return false, nil
		}
		if snap.Processes[i].PID == 0 && snap.Processes[i].Status == StatusStopped {
			swapped = true
			return false, nil
		}
		snap.Processes[i].PID = 0
		snap.Processes[i].Status = StatusStopped
		swapped = true
		return true, nil
	})
	return swapped, err
}

// IncrementRestarts bumps the restart counter of record id, saturating at
// math.MaxInt. Unknown ids are ignored.
func (s *Store) IncrementRestarts(id int) error {
	return s.mutate(func(snap *snapshot) (bool, error) {
		i := snap.index(id)
		if i < 0 {
			return false, nil
		}
		if snap.Processes[i].Restarts < math.MaxInt {
			snap.Processes[i].Restarts++
		}
		return true, nil
	})
}

// Delete removes record id. Unknown ids are ignored.
func (s *Store) Delete(id int) error {
	return s.mutate(func(snap *snapshot) (bool, error) {
		i := snap.index(id)
		if i < 0 {
			return false, nil
		}
		snap.Processes = append(snap.Processes[:i], snap.Processes[i+1:]...)
		return true, nil
	})
}

// DeleteIf removes record id only while its stored pid still equals
// expectPID, and reports whether it did.
func (s *Store) DeleteIf(id, expectPID int) (bool, error) {
	var removed bool
	err := s.mutate(func(snap *snapshot) (bool, error) {
		i := snap.index(id)
		if i < 0 || snap.Processes[i].PID != expectPID {
			return false, nil
		}
		snap.Processes = append(snap.Processes[:i], snap.Processes[i+1:]...)
		removed = true
		return true, nil
	})
	return removed, err
}

func (s *Store) view(fn func(*snapshot)) error {
	return s.mutate(func(snap *snapshot) (bool, error) {
		fn(snap)
		return false, nil
	})
}

// mutate runs fn against the freshly loaded document while holding both the
// in-process mutex and the cross-process file lock.
func (s *Store) mutate(fn func(*snapshot) (bool, error)) error {
	return s.withLock(func() error {
		snap, _, err := s.load()
		if err != nil {
			return err
		}
		changed, err := fn(&snap)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.save(snap)
	})
}

func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := acquireLock(s.lockPath)
	if err != nil {
		return &StoreIOError{Op: "lock", Path: s.lockPath, Err: err}
	}
	defer func() { _ = l.release() }()
	return fn()
}

func (s *Store) load() (snapshot, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{Processes: []Record{}}, false, nil
		}
		return snapshot{}, false, &StoreIOError{Op: "read", Path: s.path, Err: err}
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return snapshot{}, true, &MalformedStoreError{Path: s.path, Err: err}
	}
	if snap.Processes == nil {
		snap.Processes = []Record{}
	}
	return snap, true, nil
}

// save writes the document atomically: temp file in the same directory,
// fsync, rename over the original.
func (s *Store) save(snap snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &StoreIOError{Op: "encode", Path: s.path, Err: err}
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "create temp document")}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "write temp document")}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "sync temp document")}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "close temp document")}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "chmod temp document")}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &StoreIOError{Op: "write", Path: s.path, Err: errors.Wrap(err, "replace document")}
	}
	return nil
}
