package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/vantage-tools/vantage/internal/config"
	"github.com/vantage-tools/vantage/internal/db"
	"github.com/vantage-tools/vantage/internal/store"
	"gorm.io/gorm"
)

const defaultConfigPath = "vantage.yaml"

// loadConfig reads the config file. A missing file at the default path falls
// back to built-in defaults so the daemon runs with zero setup.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore connects to the configured backend, migrates, and wraps the
// handle in a Store. The handle is opened once and shared by every surface.
func openStore(cfg *config.Config) (*store.Store, *gorm.DB, error) {
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, nil, err
	}
	return store.New(gormDB), gormDB, nil
}
