// Package sqldb opens the SQL handle shared by the content store and the
// SQL-backed cache. SQLite is the default; Postgres is reached through pgx's
// database/sql driver.
package sqldb

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to dsn using driver. For SQLite the data directory is created
// and its pragmas are set on every connection in the pool.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return openSQLite(dsn)
	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		return &DB{DB: db, driver: DriverPostgres}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return &DB{DB: db, driver: DriverSQLite}, nil
}

// sqlitePragmas run on every new pooled connection. WAL lets readers proceed
// during imports; busy_timeout makes writers wait instead of failing with
// SQLITE_BUSY.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

func sqliteDSN(path string) string {
	q := make(url.Values)
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Driver returns the dialect name.
func (db *DB) Driver() string {
	return db.driver
}

// Rebind rewrites ? placeholders to $n for Postgres. Queries must not contain
// literal question marks.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
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
