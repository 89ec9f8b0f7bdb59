// Package influxdb provides the optional time-series archive for
// committed sensor readings.
//
// SQLite remains the system of record; this package mirrors accepted
// readings into InfluxDB for long-horizon storage and external tooling.
// Writes are non-blocking and batched, with errors delivered through an
// async callback, so archive failures never affect an ingestion commit.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Warn("influxdb write error", "error", err)
//	})
//
//	client.WriteReading(42, "temperature", "celsius", 21.5, time.Now())
package influxdb
