// Package cliutil holds the connection plumbing shared by the maintenance commands.
package cliutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/estatedesk/platform/go/persistence"
)

const databaseURLFlag = "database-url"

type environment struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

// AddDatabaseURLFlag registers --database-url as a persistent flag on cmd.
func AddDatabaseURLFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(databaseURLFlag, "", "PostgreSQL connection string (defaults to $DATABASE_URL)")
}

// DatabaseURL returns --database-url, falling back to DATABASE_URL.
func DatabaseURL(cmd *cobra.Command) (string, error) {
	value, err := cmd.Flags().GetString(databaseURLFlag)
	if err != nil {
		return "", err
	}
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}

	var cfg environment
	if err := env.Parse(&cfg); err != nil {
		return "", fmt.Errorf("read environment: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	return cfg.DatabaseURL, nil
}

// OpenPool connects using the command's database url. The returned func closes the pool.
func OpenPool(ctx context.Context, cmd *cobra.Command) (*pgxpool.Pool, func(), error) {
	databaseURL, err := DatabaseURL(cmd)
	if err != nil {
		return nil, nil, err
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}
	return pool, func() { persistence.ClosePool(pool) }, nil
}
