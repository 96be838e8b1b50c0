package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
)

func TestNewSQLiteSharesWriterAndReader(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	dsn := "file:database_test?mode=memory&cache=shared"
	cfg := config.Config{Database: config.Database{Driver: "sqlite", WriterDSN: dsn, ReaderDSN: dsn}}

	conns, err := New(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)
	assert.Equal(t, "sqlite", conns.Driver)
	assert.Equal(t, 1, conns.Writer.DB.Stats().MaxOpenConnections)

	lc.RequireStart()
	var one int
	require.NoError(t, conns.Writer.NewSelect().ColumnExpr("1").Scan(context.Background(), &one))
	assert.Equal(t, 1, one)
	lc.RequireStop()
}

func TestOpenSeparateReader(t *testing.T) {
	conns, err := Open(config.Database{
		Driver:    "sqlite",
		WriterDSN: "file:database_writer?mode=memory&cache=shared",
		ReaderDSN: "file:database_reader?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	assert.NotSame(t, conns.Writer, conns.Reader)
	assert.NoError(t, conns.Ping(context.Background()))
}

func TestOpenRejects(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle", WriterDSN: "x"})
	assert.Error(t, err)

	_, err = Open(config.Database{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestInMemory(t *testing.T) {
	assert.True(t, InMemory(":memory:"))
	assert.True(t, InMemory("file:x?mode=memory&cache=shared"))
	assert.False(t, InMemory("file:orderlens.db"))
}
