package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
)

const (
	openTimeout = 10 * time.Second
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Sink batches operation points into one InfluxDB bucket.
//
// Writes never block the caller: points are queued by the client library
// and flushed by size or interval. A zero or closed Sink drops writes.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open    atomic.Bool
	written atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once

	onErrorMu sync.RWMutex
	onError   func(err error)
}

// SinkStats counts points handed to the write API and batches the server
// rejected.
type SinkStats struct {
	Written     uint64
	WriteErrors uint64
}

// Open pings the server and starts a batched, non-blocking writer for
// cfg.Bucket. It returns ErrDisabled when cfg.Enabled is false.
func Open(cfg config.InfluxDBConfig) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	s := &Sink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	s.open.Store(true)
	go s.drainErrors(s.writeAPI.Errors())

	return s, nil
}

// writeOptions maps the config onto client options, substituting defaults
// for non-positive batch size and flush interval.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrUnreachable)
	}
	return nil
}

// drainErrors counts asynchronous write failures and forwards them to the
// SetOnError callback. It ends when the client is closed.
func (s *Sink) drainErrors(errs <-chan error) {
	for err := range errs {
		s.failed.Add(1)

		s.onErrorMu.RLock()
		callback := s.onError
		s.onErrorMu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (s *Sink) SetOnError(callback func(err error)) {
	s.onErrorMu.Lock()
	s.onError = callback
	s.onErrorMu.Unlock()
}

// IsOpen reports whether writes are being accepted.
func (s *Sink) IsOpen() bool {
	return s.open.Load()
}

// Stats returns the sink's counters.
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Written:     s.written.Load(),
		WriteErrors: s.failed.Load(),
	}
}

// HealthCheck pings the server.
func (s *Sink) HealthCheck(ctx context.Context) error {
	if !s.IsOpen() {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return ping(ctx, s.client)
}

// Flush blocks until queued points are written. It is a no-op on a
// closed Sink.
func (s *Sink) Flush() {
	if s.IsOpen() {
		s.writeAPI.Flush()
	}
}

// Close flushes queued points and releases the client. It is idempotent.
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.open.Store(false)
		s.writeAPI.Flush()
		s.client.Close()
	})
	return nil
}
