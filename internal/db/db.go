// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the few places where postgres and sqlite differ.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type Config struct {
	Driver       string
	URL          string
	MaxOpenConns int
	PingTimeout  time.Duration
}

// DialectFor maps a database/sql driver name to its SQL dialect.
func DialectFor(driver string) Dialect {
	if driver == "sqlite" {
		return SQLite
	}
	return Postgres
}

// Open connects, pings and applies the schema.
func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect := DialectFor(cfg.Driver)

	conn, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	maxOpen := cfg.MaxOpenConns
	if dialect == SQLite {
		// single writer; avoids SQLITE_BUSY between concurrent requests
		maxOpen = 1
	}
	if maxOpen > 0 {
		conn.SetMaxOpenConns(maxOpen)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if err := ApplySchema(ctx, conn, dialect); err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, dialect, nil
}

// ApplySchema creates the tables if they do not exist. Idempotent.
func ApplySchema(ctx context.Context, conn *sql.DB, dialect Dialect) error {
	for _, stmt := range schema(dialect) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func schema(dialect Dialect) []string {
	idColumn := "SERIAL PRIMARY KEY"
	if dialect == SQLite {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id          ` + idColumn + `,
			name        TEXT    NOT NULL,
			description TEXT,
			status      TEXT    NOT NULL DEFAULT 'draft',
			created_at  BIGINT  NOT NULL,
			launched_at BIGINT,
			is_active   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_setups (
			campaign_id                 INTEGER NOT NULL PRIMARY KEY REFERENCES campaigns(id),
			resources_allocated         INTEGER NOT NULL,
			configuration_applied       INTEGER NOT NULL,
			external_services_connected INTEGER NOT NULL,
			setup_timestamp             BIGINT  NOT NULL
		)`,
	}
}

// Rebind rewrites '?' placeholders to $N for postgres drivers.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func FromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
