package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"resource-matcher/internal/common/config"
)

// NewSQLite opens an embedded catalog file and pings it.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig) (*SQLClient, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", cfg.Path, err)
	}

	return &SQLClient{DB: db, Dialect: DialectSQLite}, nil
}
