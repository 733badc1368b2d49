package dbaccess

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// layerMetrics records operation counts, errors, retries and durations for
// one Layer. Names follow the Prometheus text format.
type layerMetrics struct {
	set     *metrics.Set
	retries *metrics.Counter
}

func newLayerMetrics(set *metrics.Set) *layerMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	return &layerMetrics{
		set:     set,
		retries: set.GetOrCreateCounter("prodev_dbaccess_retries_total"),
	}
}

// observe records one finished operation.
func (m *layerMetrics) observe(o Observation) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`prodev_dbaccess_operations_total{kind=%q}`, o.Kind)).Inc()
	if o.Err != nil {
		m.set.GetOrCreateCounter(fmt.Sprintf(`prodev_dbaccess_errors_total{kind=%q}`, o.Kind)).Inc()
	}
	m.set.GetOrCreateHistogram(fmt.Sprintf(`prodev_dbaccess_duration_seconds{kind=%q}`, o.Kind)).Update(o.Duration.Seconds())
}

// operations returns how many operations of kind have finished.
func (m *layerMetrics) operations(kind string) uint64 {
	return m.set.GetOrCreateCounter(fmt.Sprintf(`prodev_dbaccess_operations_total{kind=%q}`, kind)).Get()
}

func (m *layerMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
