package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
	"github.com/nerrad567/prodev-core/internal/infrastructure/database"
	"github.com/nerrad567/prodev-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/prodev-core/internal/infrastructure/logging"
	"github.com/nerrad567/prodev-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/prodev-core/internal/user"
	"github.com/nerrad567/prodev-core/migrations"
)

// app is the wired store: database, access layer, repository and the
// optional MQTT and InfluxDB side channels.
type app struct {
	cfg *config.Config
	log *logging.Logger

	db     *database.DB
	layer  *dbaccess.Layer
	users  *user.Repository
	mqtt   *mqtt.Client
	influx *influxdb.Sink
}

// openApp opens the store, applies pending migrations and wires the
// repository. The caller must Close the app.
func openApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		a.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if cfg.InfluxDB.Enabled {
		a.influx, err = influxdb.Open(cfg.InfluxDB)
		if err != nil {
			a.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxLog := log.Component("influxdb")
		a.influx.SetOnError(func(err error) {
			influxLog.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB operation sink open", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	opts := dbaccess.Options{
		Retry: dbaccess.RetryPolicy{
			MaxAttempts: cfg.Access.Retry.MaxAttempts,
			Delay:       cfg.RetryDelay(),
		},
		BatchSize:   cfg.Access.BatchSize,
		PageSize:    cfg.Access.PageSize,
		Logger:      log.Component("dbaccess"),
		IsTransient: database.IsTransient,
	}
	if a.influx != nil {
		influx := a.influx
		opts.Observer = func(o dbaccess.Observation) {
			influx.ObserveOperation(o.Kind, o.Query, o.Duration, o.Err)
		}
	}

	a.layer, err = dbaccess.New(db, opts)
	if err != nil {
		a.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating access layer: %w", err)
	}

	userOpts := user.Options{
		Logger:            log.Component("user"),
		IsUniqueViolation: database.IsUniqueViolation,
		ClearCacheOnWrite: cfg.Cache.ClearOnChange,
	}

	if cfg.MQTT.Enabled {
		if err := a.connectMQTT(); err != nil {
			a.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
		userOpts.Notifier = a.mqtt
	}

	a.users = user.NewRepository(a.layer, userOpts)
	return a, nil
}

// openDatabase opens the configured store without touching its schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		Name:         cfg.Database.Name,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// connectMQTT connects the change-event client and, when configured,
// clears the query cache on every change event.
func (a *app) connectMQTT() error {
	client, err := mqtt.Connect(a.cfg.MQTT,
		mqtt.WithLogger(a.log.Component("mqtt")),
		mqtt.WithOnConnect(func() { a.log.Info("MQTT connected") }),
	)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	a.mqtt = client

	a.log.Info("MQTT change events enabled",
		"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
		"client_id", a.cfg.MQTT.Broker.ClientID,
	)

	if !a.cfg.Cache.ClearOnChange {
		return nil
	}
	cache := a.layer.Cache()
	err = client.SubscribeChanges(func(ev mqtt.ChangeEvent) error {
		cache.Clear()
		a.log.Debug("query cache cleared", "entity", ev.Entity, "op", ev.Op, "source", ev.Source)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to change events: %w", err)
	}
	return nil
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.mqtt != nil {
		if err := a.mqtt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing MQTT: %w", err))
		}
	}
	if a.influx != nil {
		stats := a.influx.Stats()
		a.log.Debug("closing InfluxDB sink", "written", stats.Written, "write_errors", stats.WriteErrors)
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing InfluxDB: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
