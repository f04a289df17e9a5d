// Command carlink-sim is an interactive companion link simulator.
//
// It runs the phone side of the reconnection handshake against a
// simulated vehicle connected over an in-memory stream, covering all
// supported security versions including the out-of-band token exchange.
//
// Usage:
//
//	carlink-sim [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-device-id string  Local device identifier (default "PHONE-0001")
//	-car-id string     Simulated car identifier (default "ABCD-1234")
//	-car-name string   Simulated car display name (default "Sim Car")
//	-state-dir string  Directory for the persisted car registry
//	-log-file string   Protocol event log path (CBOR)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Run with an in-memory registry
//	carlink-sim
//
//	# Persist associated cars across runs and capture a protocol log
//	carlink-sim -state-dir ~/.carlink-sim -log-file session.clog
//
// Interactive Commands:
//
//	associate            - Associate the simulated car
//	reconnect <version>  - Run a reconnection handshake (v1..v4)
//	cars                 - List associated cars
//	rename <id> <name>   - Rename an associated car
//	remove <id>          - Remove an associated car
//	clear                - Remove all associated cars
//	status               - Show simulator status
//	quit                 - Exit the simulator
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/carlink-protocol/carlink-go/pkg/association"
	"github.com/carlink-protocol/carlink-go/pkg/log"
)

// Config holds the simulator configuration, from flags or a YAML file.
// Flags win over file values.
type Config struct {
	DeviceID string `yaml:"deviceId"`
	CarID    string `yaml:"carId"`
	CarName  string `yaml:"carName"`
	StateDir string `yaml:"stateDir"`
	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`
}

var (
	configFile string
	config     = Config{
		DeviceID: "PHONE-0001",
		CarID:    "ABCD-1234",
		CarName:  "Sim Car",
		LogLevel: "info",
	}
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.DeviceID, "device-id", config.DeviceID, "Local device identifier")
	flag.StringVar(&config.CarID, "car-id", config.CarID, "Simulated car identifier")
	flag.StringVar(&config.CarName, "car-name", config.CarName, "Simulated car display name")
	flag.StringVar(&config.StateDir, "state-dir", "", "Directory for the persisted car registry")
	flag.StringVar(&config.LogFile, "log-file", "", "Protocol event log path (CBOR)")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	if configFile != "" {
		if err := loadConfigFile(configFile, &config); err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		// Re-apply flags so they override file values
		flag.Parse()
	}

	logger, cleanup, err := buildLogger(config)
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer cleanup()

	registry, err := buildRegistry(config, logger)
	if err != nil {
		stdlog.Fatalf("Failed to open car registry: %v", err)
	}

	console, err := newConsole(config, registry, logger)
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}
	defer console.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}

// loadConfigFile merges YAML file values into cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// buildLogger assembles the protocol logger: slog to stderr, plus an
// optional CBOR event file, fanned out through a MultiLogger.
func buildLogger(cfg Config) (log.Logger, func(), error) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	console := log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	if cfg.LogFile == "" {
		return console, func() {}, nil
	}

	file, err := log.NewFileLogger(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return log.NewMultiLogger(console, file), func() { _ = file.Close() }, nil
}

// buildRegistry opens the car registry, file-backed when a state
// directory is configured.
func buildRegistry(cfg Config, logger log.Logger) (*association.Manager, error) {
	var store association.Store
	if cfg.StateDir != "" {
		store = association.NewFileStore(filepath.Join(cfg.StateDir, "cars.json"))
	} else {
		store = association.NewMemoryStore()
	}

	registry, err := association.NewManager(store, logger)
	if err != nil {
		return nil, fmt.Errorf("loading car registry: %w", err)
	}
	return registry, nil
}
