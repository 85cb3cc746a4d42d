package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL engine behind a *sql.DB.  Repositories use it to pick
// the row locking clause and the DDL flavour.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// LockClause returns the suffix that row-locks the rows read by a SELECT
// inside a transaction.  SQLite has no row locks; its transactions are opened
// IMMEDIATE instead, which takes the write lock up front.
func (d Dialect) LockClause() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// LockClauseOf is LockClause restricted to the rows of the given table alias,
// for reads that join other tables.
func (d Dialect) LockClauseOf(alias string) string {
	if d == MySQL {
		return " FOR UPDATE OF " + alias
	}
	return ""
}

// Options carries the connection settings for either driver.
type Options struct {
	Driver          string
	User            string
	Pass            string
	Host            string
	Port            string
	Name            string
	SQLitePath      string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies the connection.
func Open(opts Options) (*sql.DB, Dialect, error) {
	switch Dialect(opts.Driver) {
	case MySQL:
		db, err := OpenMySQL(opts)
		return db, MySQL, err
	case SQLite:
		db, err := OpenSQLite(opts.SQLitePath)
		return db, SQLite, err
	default:
		return nil, "", fmt.Errorf("database: unsupported driver %q", opts.Driver)
	}
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(opts Options) (*sql.DB, error) {
	auth := opts.User
	if opts.Pass != "" {
		auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, opts.Host, opts.Port, opts.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	life := opts.ConnMaxLifetime
	if life <= 0 {
		life = 30 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(life)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.  Every
// transaction begins IMMEDIATE so that concurrent writers queue on the
// database lock, and busy_timeout lets them wait instead of failing fast.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
