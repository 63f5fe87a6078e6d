package cmd

import (
	"fmt"

	"github.com/runger/cyclebuf/internal/config"
	"github.com/runger/cyclebuf/internal/log"
	"github.com/runger/cyclebuf/internal/storage"
)

// loadConfig reads the config file, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return loadConfigAt(configPath)
}

func loadConfigAt(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openStore opens the store with the configured buffer definitions.
func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	buffers := make([]storage.Buffer, 0, len(cfg.Buffers))
	for _, bc := range cfg.Buffers {
		b, err := storage.DefineBuffer(bc.Name, bc.Capacity, bc.Slot)
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, b)
	}

	store, err := storage.NewSQLiteStore(cfg.Database, buffers, log.NewFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}
