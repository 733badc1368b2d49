package influxdb

import "errors"

// Sentinel errors returned by Open and HealthCheck.
var (
	// ErrDisabled is returned by Open when influxdb.enabled is false.
	// Callers treat it as "no sink", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrUnreachable is returned when the server cannot be pinged or
	// reports itself unhealthy.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrClosed is returned by HealthCheck on a closed or zero Sink.
	ErrClosed = errors.New("influxdb: sink closed")
)
