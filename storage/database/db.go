package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/certstudio/core"
	appfs "github.com/trezcool/certstudio/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
	EngineMemory   = "memory" // no database; see storage/database/inmem
)

func postgresURL(dbName string, conf *core.Config) string {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN turns the database name into a modernc DSN. ":memory:" gives a private in-memory database.
func sqliteDSN(name string) string {
	if name == ":memory:" {
		return name
	}
	return "file:" + name + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open connects to the configured database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err := sqlx.Open("postgres", postgresURL(conf.Database.Name, conf))
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		if err := ping(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil

	case EngineSQLite:
		return OpenSQLite(conf.Database.Name)
	}
	return nil, fmt.Errorf("unsupported database engine %q", conf.Database.Engine)
}

// OpenSQLite opens the embedded database `name` (a file path, or ":memory:").
func OpenSQLite(name string) (*sqlx.DB, error) {
	raw, err := sql.Open("sqlite", sqliteDSN(name))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if name == ":memory:" {
		// every connection would get its own database
		raw.SetMaxOpenConns(1)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return sqlx.NewDb(raw, "sqlite3"), nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// CreateIfNotExist creates the postgres database of the app user. It is a no-op for sqlite.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}
	db, err := sql.Open("postgres", postgresURL("postgres", conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	var exists bool
	err = db.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		// CREATE DATABASE takes no bind parameters
		if _, err = db.Exec("CREATE DATABASE " + pqQuoteIdent(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

func pqQuoteIdent(name string) string {
	out := []byte{'"'}
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}

func gooseDialect(driverName string) string {
	if driverName == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

// Migrate runs a goose command ("up", "down", "status", "redo", "version", ...) with the embedded migrations.
func Migrate(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(gooseDialect(db.DriverName())); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.RunContext(ctx, command, db.DB, appfs.MigrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
