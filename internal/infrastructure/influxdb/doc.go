// Package influxdb exports access layer operation timings to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every finished
// operation (query, stream open, page, transaction) becomes one point in
// the dbaccess_operation measurement, tagged with its kind and outcome.
//
// # Usage
//
//	sink, err := influxdb.Open(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
//	layer, err := dbaccess.New(db, dbaccess.Options{
//	    Observer: func(o dbaccess.Observation) {
//	        sink.ObserveOperation(o.Kind, o.Query, o.Duration, o.Err)
//	    },
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are batched according to batch_size and flush_interval, and
// asynchronous write errors are counted in Stats and delivered to the
// SetOnError callback.
package influxdb
