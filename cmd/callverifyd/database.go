package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	callverify "github.com/goliatone/go-callverify"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/migrations"
	sqlstore "github.com/goliatone/go-callverify/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	cfg core.DatabaseConfig
}

func (c persistenceConfig) GetDebug() bool                { return c.cfg.Debug }
func (c persistenceConfig) GetDriver() string             { return c.cfg.Driver }
func (c persistenceConfig) GetServer() string             { return c.cfg.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "callverify" }

type database struct {
	client  *persistence.Client
	factory *sqlstore.RepositoryFactory
}

// openDatabase connects, applies the embedded migrations and builds the
// repository factory.
func openDatabase(ctx context.Context, cfg core.DatabaseConfig) (*database, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var dialect schema.Dialect
	switch driver {
	case "postgres", "postgresql":
		driver = "postgres"
		dialect = pgdialect.New()
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{cfg: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	err = migrations.Apply(ctx, driver, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}, client.Migrate)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &database{client: client, factory: factory}, nil
}

// facadeOptions backs the call archive and the webhook delivery ledger with
// the database. Archived records are read through a cache.
func (d *database) facadeOptions(cacheTTL time.Duration) ([]callverify.FacadeOption, error) {
	cacheConfig := repositorycache.DefaultConfig()
	if cacheTTL > 0 {
		cacheConfig.TTL = cacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("database: call log cache: %w", err)
	}
	archive, err := d.factory.CachedCallLogStore(cacheService)
	if err != nil {
		return nil, err
	}
	return []callverify.FacadeOption{
		callverify.WithCallArchive(archive),
		callverify.WithDeliveryLedger(d.factory.WebhookDeliveryStore()),
	}, nil
}

func (d *database) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
