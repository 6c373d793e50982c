package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"licensegate/logger"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a Store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// Options describes how to reach the datastore.
type Options struct {
	Driver   string // sqlite, mysql or postgres
	DSN      string // file path for sqlite, driver DSN otherwise
	Password string // optional, merged into DSN
}

// Store is the pooled connection handed to every service.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(opts.Driver)))
	if dialect == "" {
		dialect = SQLite
	}

	db, err := openDB(dialect, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{DB: db, Dialect: dialect}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"dialect": dialect,
	}).Info("Database initialized successfully")
	return store, nil
}

func openDB(dialect Dialect, opts Options) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = "./license.db"
		}
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, err
		}
		// One writer at a time; the pool must not hand out a second
		// connection that would immediately hit SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		return db, nil

	case MySQL:
		dsn, err := mysqlDSN(opts.DSN, opts.Password)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		tunePool(db)
		return db, nil

	case Postgres:
		cfg, err := pgx.ParseConfig(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		if opts.Password != "" {
			cfg.Password = opts.Password
		}
		db := stdlib.OpenDB(*cfg)
		tunePool(db)
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported driver %q", dialect)
	}
}

func tunePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
}

// sqliteDSN turns on foreign keys and a busy timeout for every connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// mysqlDSN merges the password when one is configured separately.
func mysqlDSN(dsn, password string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if password != "" {
		cfg.Passwd = password
	}
	return cfg.FormatDSN(), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping checks that the datastore is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// LockClause returns the row-lock suffix for SELECTs inside a transaction.
// SQLite has none; its single writer already serializes the transaction.
func LockClause(dialect Dialect) string {
	if dialect == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// FromDual returns the FROM clause for a SELECT that reads no table.
func FromDual(dialect Dialect) string {
	if dialect == MySQL {
		return " FROM DUAL"
	}
	return ""
}

// IsUniqueViolation reports whether err is a primary key or unique index conflict.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
