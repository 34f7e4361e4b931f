// Package di wires the data access stack: database handle, cache service,
// capability detector, pagination policy and logger, assembled once and
// shared by every repository and unit of work the container hands out.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
	"github.com/Nkambwe/Mfi-Mananger-sub000/capability"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pagination"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pkg/logging"
	"github.com/Nkambwe/Mfi-Mananger-sub000/repository"
	"github.com/Nkambwe/Mfi-Mananger-sub000/uow"
)

// Config assembles the settings for every component in the container.
type Config struct {
	// Driver is the database/sql driver name. Defaults to the bundled
	// SQLite shim when empty.
	Driver string

	// DSN is the connection string handed to the driver. It is also fed
	// to capability detection, which only ever logs it masked.
	DSN string

	// Actor is the audit identity stamped on writes.
	Actor string

	Cache      cache.Config
	Capability capability.Config
	Pagination pagination.Config
	Logging    logging.Config
}

// DefaultConfig returns a configuration backed by an in-memory SQLite
// database, suitable for tests and local development.
func DefaultConfig() Config {
	return Config{
		Driver:     sqliteshim.ShimName,
		DSN:        "file::memory:?cache=shared",
		Actor:      "system",
		Cache:      cache.DefaultConfig(),
		Capability: capability.DefaultConfig(),
		Pagination: pagination.DefaultConfig(),
		Logging:    logging.DefaultConfig(),
	}
}

// Container owns the shared data access components.
type Container struct {
	cfg      Config
	db       *bun.DB
	cache    cache.Service
	detector *capability.Detector
	policy   *pagination.Policy
	logger   zerolog.Logger
}

// dbConnection adapts a bun handle to the capability probe surface.
type dbConnection struct {
	db     *bun.DB
	driver string
	dsn    string
}

func (c *dbConnection) ProviderName() string { return c.driver }
func (c *dbConnection) DSN() string          { return c.dsn }
func (c *dbConnection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// New opens the database and builds the container. The SQLite shim serves
// when no driver is named; any other registered database/sql driver can be
// used through NewWithDB with its matching bun dialect.
func New(cfg Config) (*Container, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = sqliteshim.ShimName
	}
	// New only knows how to speak SQLite. Pairing another driver with
	// the SQLite dialect would produce silently wrong SQL.
	if driver != sqliteshim.ShimName && !strings.Contains(strings.ToLower(driver), "sqlite") {
		return nil, fmt.Errorf("di: driver %q requires its own dialect, open the handle and use NewWithDB", driver)
	}

	sqldb, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("di: open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	c, err := NewWithDB(cfg, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewWithDB builds the container around an existing bun handle, for callers
// that open their own connection with a non-SQLite dialect.
func NewWithDB(cfg Config, db *bun.DB, driver string) (*Container, error) {
	logger := logging.Setup(cfg.Logging)

	cacheSvc, err := cache.NewService(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("di: cache service: %w", err)
	}

	conn := &dbConnection{db: db, driver: driver, dsn: cfg.DSN}
	detector := capability.New(conn, cfg.Capability, cacheSvc, logger)
	policy := pagination.New(cfg.Pagination, detector, logger)

	if cfg.Actor == "" {
		cfg.Actor = "system"
	}

	return &Container{
		cfg:      cfg,
		db:       db,
		cache:    cacheSvc,
		detector: detector,
		policy:   policy,
		logger:   logger,
	}, nil
}

// DB exposes the shared bun handle.
func (c *Container) DB() *bun.DB { return c.db }

// Cache exposes the shared cache service.
func (c *Container) Cache() cache.Service { return c.cache }

// Detector exposes the capability detector.
func (c *Container) Detector() *capability.Detector { return c.detector }

// Policy exposes the pagination policy.
func (c *Container) Policy() *pagination.Policy { return c.policy }

// Logger exposes the root logger.
func (c *Container) Logger() zerolog.Logger { return c.logger }

// Close releases the database handle.
func (c *Container) Close() error {
	return c.db.Close()
}

// NewRepository builds a standalone repository for T wired with the
// container's cache, policy and logger. Standalone repositories write
// outside any transaction; use NewUnitOfWork for transactional work.
func NewRepository[T any](c *Container) *repository.Repository[T] {
	return repository.New[T](c.db,
		repository.WithCache[T](c.cache),
		repository.WithActor[T](c.cfg.Actor),
		repository.WithLogger[T](c.logger),
		repository.WithPagination[T](c.policy, c.detector),
	)
}

// NewUnitOfWork begins a transaction-scoped unit of work wired with the
// container's components.
func (c *Container) NewUnitOfWork(ctx context.Context) (*uow.UnitOfWork, error) {
	return uow.New(ctx, c.db,
		uow.WithCache(c.cache),
		uow.WithActor(c.cfg.Actor),
		uow.WithLogger(c.logger),
		uow.WithPagination(c.policy, c.detector),
	)
}
