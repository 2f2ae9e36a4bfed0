// Package db opens the sqlite station index.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ghcnd-server/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns a pooled handle to the index database. At debug level every
// statement is logged through a logging connector.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn, err := buildDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogLevel <= slog.LevelDebug && cfg.Driver == "sqlite3" {
		connector, err := NewLoggingConnector(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// A shared-cache memory database lives as long as one connection does,
	// so the pool must never drop to zero idle connections.
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func buildDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DB_DSN")
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
	}
	if dsn == ":memory:" {
		return dsn, nil
	}
	if !isMemoryDSN(dsn) {
		// Ensure directory exists for file-backed sqlite db
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		params = append(params, "_journal_mode=WAL")
	}

	if strings.HasPrefix(dsn, "file:") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", dsn, strings.Join(params, "&")), nil
}
