// Telemetry Core - Sensor Reading Pipeline
//
// This is the main entry point for the Telemetry Core service. It
// records physical-sensor readings produced by devices, validates each
// reading against the device/sensor topology, persists it, and fans it
// out in real time over WebSocket and MQTT, with optional archival to
// InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/telemetry-core/migrations"

	"github.com/nerrad567/telemetry-core/internal/api"
	"github.com/nerrad567/telemetry-core/internal/fanout"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/database"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/telemetry-core/internal/ingest"
	"github.com/nerrad567/telemetry-core/internal/reading"
	"github.com/nerrad567/telemetry-core/internal/topology"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Telemetry Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Stores
	topologyStore := topology.NewSQLiteStore(db.DB)
	readingStore := reading.NewSQLiteStore(db.DB)

	// WebSocket hub, created up front so it can join the fan-out
	// transports before the API server starts.
	hub := api.NewHub(cfg.WebSocket, log)
	transports := []fanout.Transport{hub}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		transports = append(transports, &mqttTransport{
			client: mqttClient,
			qos:    byte(cfg.MQTT.QoS),
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event fan-out over all configured transports
	broadcaster := fanout.NewBroadcaster(log, transports...)

	// Ingestion pipeline
	pipelineDeps := ingest.Deps{
		Topology: topologyStore,
		Readings: readingStore,
		Events:   broadcaster,
		Logger:   log,
	}
	// A typed nil in the interface would defeat the pipeline's nil check.
	if influxClient != nil {
		pipelineDeps.Archive = influxClient
	}
	pipeline, err := ingest.New(pipelineDeps)
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}

	// Devices may push readings over MQTT as well as HTTP; the bridge
	// feeds telemetry/ingest/<device-id> messages into the same pipeline.
	if mqttClient != nil {
		bridge, bridgeErr := ingest.NewBridge(pipeline, log)
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT ingest bridge: %w", bridgeErr)
		}
		sub := &mqttIngestSubscriber{client: mqttClient}
		if attachErr := bridge.Attach(sub, mqtt.Topics{}.AllIngest(), byte(cfg.MQTT.QoS)); attachErr != nil {
			return fmt.Errorf("attaching MQTT ingest bridge: %w", attachErr)
		}
		log.Info("MQTT ingest bridge active", "topic", mqtt.Topics{}.AllIngest())
	}

	// API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Topology:    topologyStore,
		Readings:    readingStore,
		Pipeline:    pipeline,
		Events:      broadcaster,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Retention sweep for old readings
	if cfg.Retention.Days > 0 {
		go pruneLoop(ctx, cfg, readingStore, log)
		log.Info("retention sweep enabled",
			"days", cfg.Retention.Days,
			"interval", cfg.GetSweepInterval(),
		)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Telemetry Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TELEMETRY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TELEMETRY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// pruneLoop periodically deletes readings older than the retention age.
func pruneLoop(ctx context.Context, cfg *config.Config, store reading.Store, log *logging.Logger) {
	ticker := time.NewTicker(cfg.GetSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.PruneOlderThan(ctx, cfg.GetRetentionAge())
			if err != nil {
				log.Error("retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("retention sweep complete", "deleted", deleted, "max_age", cfg.GetRetentionAge())
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional collaborators may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// mqttTransport adapts the infrastructure MQTT client to the fan-out
// Transport interface. Events are mirrored to topics of the form
// telemetry/event/<channel>/<event> so external consumers can follow
// the same channels as WebSocket clients.
type mqttTransport struct {
	client *mqtt.Client
	qos    byte
}

// Name implements fanout.Transport.
func (t *mqttTransport) Name() string { return "mqtt" }

// Publish implements fanout.Transport.
func (t *mqttTransport) Publish(topic, event string, payload []byte) error {
	return t.client.Publish(mqtt.Topics{}.Event(topic, event), payload, t.qos, false)
}

// mqttIngestSubscriber adapts the MQTT client's Subscribe, which takes
// the named mqtt.MessageHandler type, to the plain function signature
// the ingest bridge expects.
type mqttIngestSubscriber struct {
	client *mqtt.Client
}

// Subscribe implements ingest.Subscriber.
func (s *mqttIngestSubscriber) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return s.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}
