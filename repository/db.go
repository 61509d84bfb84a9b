package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	auth "github.com/goliatone/go-shop-auth"
)

//go:embed migrations
var migrationsFS embed.FS

// Settings is what Connect needs to open and check the database.
type Settings interface {
	persistence.Config
	GetDSN() string
}

// MigrationsFS returns the SQL migrations for the named dialect
// ("pg" or "sqlite").
func MigrationsFS(dialect string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+dialect)
}

// Connect opens the database described by cfg through the persistence
// client, pings it and applies pending migrations.
func Connect(ctx context.Context, cfg Settings, logger auth.Logger) (*bun.DB, error) {
	sqldb, dialect, err := open(cfg.GetDriver(), cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*auth.Principal)(nil))

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("connect %s database: %w", cfg.GetDriver(), err)
	}

	if logger != nil {
		client.SetLogger(func(format string, a ...any) {
			logger.Debug(strings.TrimSpace(fmt.Sprintf(format, a...)))
		})
	}

	migrations, err := MigrationsFS(dialect.Name().String())
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	client.RegisterSQLMigrations(migrations)

	if err := client.Migrate(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if report := client.Report(); report != nil && !report.IsZero() && logger != nil {
		logger.Info("migrations applied", "group", report.String())
	}

	return client.DB().(*bun.DB), nil
}

func open(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	if driver == "postgres" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return sqldb, pgdialect.New(), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	// sqlite serializes writers anyway and in-memory databases are per connection
	sqldb.SetMaxOpenConns(1)
	return sqldb, sqlitedialect.New(), nil
}
