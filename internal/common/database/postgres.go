package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"resource-matcher/internal/common/config"
)

// Dialect selects placeholder and boolean syntax for catalog queries.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Placeholder returns the n-th (1-based) bind parameter for the dialect.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// True is the literal used for boolean comparisons.
func (d Dialect) True() string {
	if d == DialectPostgres {
		return "TRUE"
	}
	return "1"
}

// SQLClient wraps a catalog database connection together with its dialect.
type SQLClient struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewPostgres opens a PostgreSQL catalog connection. The pool is lazy, so
// callers should Ping before serving traffic.
func NewPostgres(cfg config.PostgresConfig) (*SQLClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Dialect: DialectPostgres}, nil
}

// NewSQLClient wraps an existing handle, e.g. one from sqlmock.
func NewSQLClient(db *sql.DB, dialect Dialect) *SQLClient {
	return &SQLClient{DB: db, Dialect: dialect}
}

func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Query executes a query that returns rows
func (c *SQLClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}
