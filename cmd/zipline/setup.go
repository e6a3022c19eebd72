package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aborodya/zipline/internal/bundle"
	"github.com/aborodya/zipline/internal/config"
	"github.com/aborodya/zipline/internal/logger"
)

// loadConfig resolves the effective configuration, falling back to defaults
// when no --config flag was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from config. The --debug flag forces
// the debug level regardless of the configured one.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	return log, nil
}

// openBundle builds the configured bundle store.
func openBundle(cfg config.BundleConfig) (bundle.Storage, error) {
	if cfg.Type == "s3" {
		return bundle.NewS3(bundle.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		}), nil
	}
	return bundle.NewLocal(cfg.Path)
}
