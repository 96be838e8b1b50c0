package store

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderlens/internal/database"
)

// ErrNoRows is returned by QueryOne when the statement produced no rows.
var ErrNoRows = errors.New("store: no rows")

// Querier is the raw statement interface the scenarios are written against.
// Each call is one round trip to the backing store.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Execute(ctx context.Context, query string, args ...any) error
}

// Module provides the Querier and instruments the database connections.
var Module = fx.Options(
	fx.Provide(
		NewHook,
		New,
		func(db *DB) Querier { return db },
	),
	fx.Invoke(Instrument),
)

// DB implements Querier on top of a bun connection. Placeholders are
// formatted by bun, so bun.In and friends work as arguments.
type DB struct {
	db *bun.DB
}

// New builds a Querier on the writer connection; scenarios both read and write.
func New(conns *database.Connections) *DB {
	return &DB{db: conns.Writer}
}

// Wrap builds a Querier around an existing bun connection.
func Wrap(db *bun.DB) *DB {
	return &DB{db: db}
}

// Query runs a statement and drains every row before returning.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// Execute runs a statement that returns no rows.
func (d *DB) Execute(ctx context.Context, query string, args ...any) error {
	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

// QueryOne runs a statement and returns its first row.
func QueryOne(ctx context.Context, q Querier, query string, args ...any) (Row, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// Instrument attaches the hook to the writer and, when distinct, the reader.
func Instrument(conns *database.Connections, hook *Hook) {
	conns.Writer.AddQueryHook(hook)
	if conns.Reader != conns.Writer {
		conns.Reader.AddQueryHook(hook)
	}
}
