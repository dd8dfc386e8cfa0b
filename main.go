package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/air-relay/pkg/adb"
	"github.com/air-relay/pkg/config"
	"github.com/air-relay/pkg/logging"
	"github.com/air-relay/pkg/room"
	"github.com/air-relay/pkg/server"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	configFile = kingpin.Flag("config.file", "Path to configuration file.").Default("config.yaml").String()
	bindAddr   = kingpin.Flag("bind-addr", "Address to listen on for HTTP and WebSocket traffic.").String()
	dbPath     = kingpin.Flag("room.db-path", "Path to the room SQLite database.").String()

	// Global config
	appConfig *config.Config
)

func main() {
	kingpin.Parse()

	// Load configuration
	var err error
	appConfig, err = config.LoadConfig(*configFile)
	if err != nil {
		// If config file doesn't exist, continue with defaults
		logging.Logf("Warning: Failed to load config file: %v, using defaults", err)
		appConfig = &config.Config{}
		appConfig.SetDefaults()
		appConfig.ApplyEnvOverrides()
	}

	// Flags override file and environment
	if *bindAddr != "" {
		appConfig.Server.BindAddr = *bindAddr
	}
	if *dbPath != "" {
		appConfig.Room.DBPath = *dbPath
	}

	serverID := logging.GetServerID()
	logging.Logf("Server initialized with ID: %s", serverID)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logging.Log("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		logging.Fatalf("Server error: %v", err)
	}
	logging.Flush()
}

func run(ctx context.Context) error {
	rooms, err := room.Open(appConfig.Room.DBPath)
	if err != nil {
		return err
	}
	defer rooms.Close()

	adbManager := adb.NewManager(appConfig.ADB.Path, appConfig.GetADBTimeout())

	srv := server.NewServer(appConfig, rooms, adbManager)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logf("Shutdown error: %v", err)
		}
		logging.Log("Server shutdown complete")
		return nil
	}
}
