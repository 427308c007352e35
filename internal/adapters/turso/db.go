package turso

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/migrate"
	"github.com/intura-ai/intura-go/internal/util"
)

const localFile = "intura.db"

// Options configures Open.
type Options struct {
	Ping    bool
	Migrate bool
}

// Open connects to the remote database when cfg.URL is set, otherwise to a
// local file in the XDG data directory.
func Open(ctx context.Context, cfg config.Database, opts Options) (*sql.DB, error) {
	dsn, remote, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if remote {
		// Turso closes idle Hrana streams, so never keep idle connections.
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(0)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(1)
	}

	if opts.Ping {
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}
	if opts.Migrate {
		if err := migrate.RunAll(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return db, nil
}

func dataSource(cfg config.Database) (string, bool, error) {
	if cfg.URL != "" {
		if cfg.AuthToken == "" {
			return cfg.URL, true, nil
		}
		return cfg.URL + "?authToken=" + cfg.AuthToken, true, nil
	}

	dir, err := util.DataDir()
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create data directory: %w", err)
	}
	return "file:" + filepath.Join(dir, localFile), false, nil
}

// IsStreamError checks if an error is a Turso "stream not found" error.
func IsStreamError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "stream not found")
}

// WithRetry runs fn again, up to maxRetries times, when it fails with a
// Turso stream error.
func WithRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = fn()
		if err == nil || !IsStreamError(err) || attempt == maxRetries {
			return result, err
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return result, err
}
