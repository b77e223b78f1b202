package registry

// Status is the last observed lifecycle state of a supervised process.
// It may be stale relative to the OS; see manager.Reconcile.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
)

// DefaultNamespace is applied when a record is added without a namespace.
const DefaultNamespace = "default"

// Record is one supervised process as persisted in the registry document.
// ID is stable across restarts and never reused; PID is 0 when no OS process
// is known to back the record.
type Record struct {
	ID        int      `json:"pmr_id" yaml:"id"`
	PID       int      `json:"pid" yaml:"pid"`
	Name      string   `json:"name" yaml:"name"`
	Namespace string   `json:"namespace" yaml:"namespace"`
	Status    Status   `json:"status" yaml:"status"`
	Program   string   `json:"program" yaml:"program"`
	WorkDir   string   `json:"workdir" yaml:"workdir"`
	Args      []string `json:"args" yaml:"args"`
	Restarts  int      `json:"restarts" yaml:"restarts"`
}

// Live reports whether the record claims a running OS process.
func (r Record) Live() bool { return r.PID > 0 }

func (r Record) clone() Record {
	c := r
	if r.Args != nil {
		c.Args = append([]string(nil), r.Args...)
	}
	return c
}

// snapshot is the whole registry document. NextID is a high-water mark so
// ids stay strictly increasing even after the newest record is deleted.
type snapshot struct {
	NextID    int      `json:"next_id,omitempty"`
	Processes []Record `json:"processes"`
}

func (s *snapshot) allocID() int {
	next := s.NextID
	for _, p := range s.Processes {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	if next < 1 {
		next = 1
	}
	s.NextID = next + 1
	return next
}

func (s *snapshot) index(id int) int {
	for i := range s.Processes {
		if s.Processes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *snapshot) copyRecords() []Record {
	out := make([]Record, 0, len(s.Processes))
	for _, p := range s.Processes {
		out = append(out, p.clone())
	}
	return out
}
