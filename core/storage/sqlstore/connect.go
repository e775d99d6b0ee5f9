// Package sqlstore keeps conversation states in PostgreSQL.
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/calcbot/core/logger"
)

// Connect opens the database, waits until it answers and configures the pool.
func Connect(ctx context.Context, dsn string, maxConns int) (*sqlx.DB, error) {
	start := time.Now()
	host := hostOf(dsn)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := waitForDB(ctx, db, 30*time.Second); err != nil {
		_ = db.Close()
		logger.Error(ctx, "store", "db.connect",
			slog.String("status", "error"),
			slog.String("driver", "postgres"),
			slog.String("host", host),
			slog.Duration("took", logger.Took(start)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	logger.Info(ctx, "store", "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", "postgres"),
		slog.String("host", host),
		slog.Int("pool_open", maxConns),
		slog.Duration("took", logger.Took(start)),
	)
	return db, nil
}

// waitForDB pings until the server is ready, ctx ends or timeout elapses.
func waitForDB(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
}

// hostOf extracts the host of a URL-style DSN for logging. Credentials never reach the logs.
func hostOf(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return u.Host
}
