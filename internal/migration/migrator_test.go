package migration_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/orderlens/internal/database/dbtest"
	"github.com/Additional-Code/orderlens/internal/migration"
)

func TestEveryDialectShipsTheSameMigrations(t *testing.T) {
	var want []string
	for i, driver := range []string{"sqlite", "postgres", "mysql"} {
		entries, err := fs.ReadDir(migration.Files, migration.Dir(driver))
		require.NoError(t, err, driver)

		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		if i == 0 {
			want = names
			continue
		}
		assert.Equal(t, want, names, driver)
	}
}

func TestUpAndDownOnSQLite(t *testing.T) {
	conns := dbtest.Open(t)
	ctx := context.Background()

	mig, err := migration.NewForDB(conns.Writer, "sqlite", nil)
	require.NoError(t, err)
	require.NoError(t, mig.Up(ctx), "re-applying is a no-op")

	status, err := mig.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	for _, s := range status {
		assert.True(t, s.Applied, s.Path)
	}

	var tables []string
	require.NoError(t, conns.Writer.NewSelect().
		ColumnExpr("name").
		TableExpr("sqlite_master").
		Where("type = 'table' AND name IN (?)", bun.In([]string{"customers", "orders", "order_items", "products"})).
		Scan(ctx, &tables))
	assert.Len(t, tables, 4)

	require.NoError(t, mig.Down(ctx, 0, true))

	var remaining int
	require.NoError(t, conns.Writer.NewSelect().
		ColumnExpr("COUNT(*)").
		TableExpr("sqlite_master").
		Where("type = 'table' AND name = 'orders'").
		Scan(ctx, &remaining))
	assert.Zero(t, remaining)

	require.NoError(t, mig.Down(ctx, 1, false), "nothing left to roll back")
}

func TestUnsupportedDriver(t *testing.T) {
	conns := dbtest.Open(t)

	_, err := migration.NewForDB(conns.Writer, "oracle", nil)
	assert.Error(t, err)
}
