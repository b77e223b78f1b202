package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/pmr/internal/registry"
)

const namespace = "pmr"

// Collectors holds the registry gauges exported to a textfile.
type Collectors struct {
	reg      *prometheus.Registry
	records  *prometheus.GaugeVec
	restarts *prometheus.GaugeVec
	up       *prometheus.GaugeVec
}

func NewCollectors() *Collectors {
	c := &Collectors{
		reg: prometheus.NewRegistry(),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "records",
				Help:      "Number of registry records per status.",
			}, []string{"status"},
		),
		restarts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "restarts",
				Help:      "Restart counter stored in the registry.",
			}, []string{"id", "name"},
		),
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "process",
				Name:      "up",
				Help:      "1 when the record is running, 0 otherwise.",
			}, []string{"id", "name"},
		),
	}
	c.reg.MustRegister(c.records, c.restarts, c.up)
	return c
}

// Observe replaces the exported values with the given registry snapshot.
func (c *Collectors) Observe(records []registry.Record) {
	c.records.Reset()
	c.restarts.Reset()
	c.up.Reset()
	for _, s := range []registry.Status{registry.StatusStarting, registry.StatusRunning, registry.StatusStopped} {
		c.records.WithLabelValues(string(s)).Set(0)
	}
	for _, r := range records {
		id := strconv.Itoa(r.ID)
		c.records.WithLabelValues(string(r.Status)).Inc()
		c.restarts.WithLabelValues(id, r.Name).Set(float64(r.Restarts))
		up := 0.0
		if r.Status == registry.StatusRunning {
			up = 1
		}
		c.up.WithLabelValues(id, r.Name).Set(up)
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (c *Collectors) Gatherer() prometheus.Gatherer { return c.reg }

// WriteTextfile writes the registry snapshot in the node_exporter textfile
// format. The file is replaced atomically.
func WriteTextfile(path string, records []registry.Record) error {
	c := NewCollectors()
	c.Observe(records)
	return prometheus.WriteToTextfile(path, c.reg)
}
