// Package config loads and validates Telemetry Core configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and TELEMETRY_* environment variables applied last. Secrets
// (MQTT credentials, InfluxDB token) should come from the environment
// rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
