package influxdb

import (
	"context"
	"errors"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and outcome names for access layer operations.
const (
	operationMeasurement = "dbaccess_operation"

	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

// ObserveOperation records one finished access layer operation.
//
// kind and outcome are tags; the duration and the query text are fields,
// so arbitrary query text never becomes a series. The write is non-blocking
// and dropped when the sink is closed.
func (s *Sink) ObserveOperation(kind, query string, d time.Duration, err error) {
	if !s.IsOpen() {
		return
	}
	s.writeAPI.WritePoint(operationPoint(kind, query, d, err, time.Now()))
	s.written.Add(1)
}

// operationPoint builds the point ObserveOperation writes.
func operationPoint(kind, query string, d time.Duration, err error, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"duration_ms": float64(d) / float64(time.Millisecond),
	}
	if query != "" {
		fields["query"] = query
	}

	return write.NewPoint(
		operationMeasurement,
		map[string]string{
			"kind":    kind,
			"outcome": outcome(err),
		},
		fields,
		at,
	)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeError
	}
}
