// ventsync - WebSocket synchronization hub for smart vents and
// temperature sensors.
//
// Devices and browser clients connect to a single WebSocket endpoint;
// the hub keeps one canonical record per device, persists it to SQLite,
// and fans state changes out to every connected client. MQTT ingest and
// InfluxDB telemetry are optional sidecars.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/airloom/ventsync/migrations"

	"github.com/airloom/ventsync/internal/api"
	"github.com/airloom/ventsync/internal/bridge"
	"github.com/airloom/ventsync/internal/device"
	"github.com/airloom/ventsync/internal/hub"
	"github.com/airloom/ventsync/internal/infrastructure/config"
	"github.com/airloom/ventsync/internal/infrastructure/database"
	"github.com/airloom/ventsync/internal/infrastructure/influxdb"
	"github.com/airloom/ventsync/internal/infrastructure/logging"
	"github.com/airloom/ventsync/internal/infrastructure/mqtt"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ventsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise the device record store
	repo := device.NewSQLiteRepository(db.DB)
	store := device.NewStore(repo)
	store.SetLogger(log)

	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device records: %w", loadErr)
	}
	log.Info("device store initialised", "devices", store.Count())

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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		store.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	wsHub := hub.New(cfg.WebSocket, store, log)
	go wsHub.Run(ctx)

	// Connect to MQTT and start the telemetry bridge (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		telemetryBridge := bridge.New(mqttClient, store, wsHub, cfg.MQTT.QoS, log)
		if startErr := telemetryBridge.Start(); startErr != nil {
			return fmt.Errorf("starting telemetry bridge: %w", startErr)
		}
		wsHub.SetMirror(telemetryBridge)
	} else {
		log.Info("MQTT bridge disabled")
	}

	server, err := api.New(api.Deps{
		Config:  cfg.Server,
		WS:      cfg.WebSocket,
		Logger:  log,
		Store:   store,
		Hub:     wsHub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer func() {
		log.Info("stopping server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VENTSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VENTSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
