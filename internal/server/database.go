package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	repo "github.com/joseph-ayodele/photo-pipeline/internal/repository"
)

// ConnectDB opens the configured database and verifies it answers a ping.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := repo.HealthCheck(ctx, db, cfg.DialTimeout, logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	return db, nil
}
