package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB is a connection pool tagged with the SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// DetectDialect infers the dialect from a DSN: postgres URLs and key=value
// DSNs go to pgx, anything else is treated as a sqlite path.
func DetectDialect(uri string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(uri))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "sslmode="):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

func Init(uri string) (*DB, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("db: empty uri")
	}
	dialect := DetectDialect(uri)

	var (
		conn *sql.DB
		err  error
	)
	switch dialect {
	case DialectPostgres:
		conn, err = sql.Open("pgx", uri)
		if err != nil {
			return nil, fmt.Errorf("db: open postgres: %w", err)
		}
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(30 * time.Minute)
	default:
		conn, err = sql.Open("sqlite3", sqliteDSN(uri))
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		conn.SetMaxOpenConns(10)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &DB{DB: conn, Dialect: dialect}, nil
}

// sqliteDSN takes an immediate write lock on BEGIN so concurrent ledger
// transactions queue on busy_timeout instead of failing mid-transaction.
func sqliteDSN(uri string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		uri = strings.TrimPrefix(uri, prefix)
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
