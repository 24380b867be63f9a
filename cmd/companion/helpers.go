package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/opensheets/companion/internal/collector"
	"github.com/opensheets/companion/internal/credentials"
	"github.com/opensheets/companion/internal/engine"
	"github.com/opensheets/companion/internal/service"
	"github.com/opensheets/companion/internal/storage"
)

func databasePath() (string, error) {
	if path := viper.GetString("database.path"); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataDir, "companion", "companion.db"), nil
}

// openStorage opens the database and brings the schema up to date.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	path, err := databasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

func openCredentials() (*credentials.FileStore, error) {
	return credentials.NewFileStore(viper.GetString("credentials.path"))
}

// newCollector builds a collector client for the connected server.
func newCollector(creds service.Credentials) (*collector.Client, error) {
	return collector.NewClient(creds.ServerURL)
}

func engineConfig() engine.Config {
	config := engine.DefaultConfig()

	if size := viper.GetInt("sync.batch_size"); size > 0 {
		config.BatchSize = size
	}
	if interval := viper.GetDuration("sync.sweep_interval"); interval > 0 {
		config.MinSweepInterval = interval
	}
	if interval := viper.GetDuration("sync.max_sweep_interval"); interval > 0 {
		config.MaxSweepInterval = interval
	}

	return config
}

// startOfToday returns local midnight, the boundary for the synced-today count.
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
