package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/database"
)

// Files holds the SQL migrations, one directory per dialect.
//
//go:embed sql
var Files embed.FS

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the embedded migrations for one connection.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// Status describes one known migration.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// New builds a migrator on the writer connection.
func New(conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	return NewForDB(conns.Writer, conns.Driver, logger)
}

// NewForDB builds a migrator for an already opened connection.
func NewForDB(db *bun.DB, driver string, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(Files, Dir(driver))
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Dir returns the embedded migrations directory for a database driver.
func Dir(driver string) string {
	switch driver {
	case "postgres", "pg":
		return path.Join("sql", "postgres")
	case "mysql":
		return path.Join("sql", "mysql")
	default:
		return path.Join("sql", "sqlite")
	}
}

// Up applies all pending migrations. Nothing pending is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		m.logger.Info("no migrations to apply")
		return nil
	}
	m.log(results)
	return nil
}

// Down rolls back steps migrations (at least one), or every applied
// migration when all is set.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil {
			return err
		}
		m.log(results)
		return nil
	}

	for i := 0; i < max(steps, 1); i++ {
		result, err := m.provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logger.Info("no migrations to roll back")
			return nil
		}
		if err != nil {
			return err
		}
		m.log([]*goose.MigrationResult{result})
	}
	return nil
}

// Status lists every embedded migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	states, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(states))
	for _, s := range states {
		out = append(out, Status{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func (m *Migrator) log(results []*goose.MigrationResult) {
	for _, r := range results {
		m.logger.Info("migration",
			zap.String("direction", r.Direction),
			zap.Int64("version", r.Source.Version),
			zap.String("path", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}
