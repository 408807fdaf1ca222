package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fenilmodi00/nuri-bid-crawler/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and placeholder style
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// DB is a connection pool that knows which dialect it speaks
type DB struct {
	*sql.DB
	Dialect Dialect
}

// ParseURL splits a DATABASE_URL into dialect and driver DSN.
// sqlite://path opens a file (sqlite://:memory: for an in-memory database); postgres:// and postgresql:// are passed to lib/pq unchanged.
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", databaseURL)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

// Open establishes a database connection with pool configuration and verifies it with a ping
func Open(databaseURL string, cfg config.DatabaseConfig) (*DB, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		dsn, err = prepareSQLite(dsn)
		if err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if dialect == DialectSQLite {
		// One writer; also keeps a :memory: database alive on a single connection
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"dialect":           dialect,
		"max_open_conns":    conn.Stats().MaxOpenConnections,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	}).Info("Connected to database successfully")

	return &DB{DB: conn, Dialect: dialect}, nil
}

func prepareSQLite(path string) (string, error) {
	file := path
	if i := strings.IndexByte(file, '?'); i >= 0 {
		file = file[:i]
	}
	if file != ":memory:" && !strings.HasPrefix(file, "file:") {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	if !strings.Contains(path, "_pragma=") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_pragma=busy_timeout(5000)"
	}
	return path, nil
}

// Close closes the pool
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	err := db.DB.Close()
	logrus.WithField("dialect", db.Dialect).Debug("Database connection closed")
	return err
}

// Rebind rewrites ? placeholders to $N for postgres
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
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

// Migrate applies the embedded schema for the connection's dialect
func (db *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if db.Dialect == DialectPostgres {
		schema = postgresSchema
	}

	for _, stmt := range parseSQLStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}

	logrus.WithField("dialect", db.Dialect).Info("Database migration completed successfully")
	return nil
}

// parseSQLStatements splits SQL content into individual statements, dropping comment-only lines
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(currentStatement.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if stmt := strings.TrimSpace(currentStatement.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// HealthCheck pings the database and logs pool statistics
func (db *DB) HealthCheck(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := db.Stats()
	logrus.WithFields(logrus.Fields{
		"dialect":              db.Dialect,
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration,
	}).Debug("Database connection pool health check")

	return nil
}
