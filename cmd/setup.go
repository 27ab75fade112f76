package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/autoplaylist/internal/shared"
	"github.com/urfave/cli/v3"
)

// maxRollbacks bounds the reset loop in case the migrations table is inconsistent.
const maxRollbacks = 100

// SetupDatabase creates the config file when missing, initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				config.ApplyEnv()
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("reset") {
		n := 0
		for ; n < maxRollbacks; n++ {
			if err := shared.RollbackMigration(ctx, db); err != nil {
				r.logger.Debug("rollback stopped", "reason", err)
				break
			}
		}
		r.logger.Info("rolled back migrations", "count", n)
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}
