// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database"
	"github.com/Additional-Code/orderlens/internal/migration"
)

var seq atomic.Int64

// Open returns connections to a fresh, migrated in-memory sqlite database.
// The database is closed when the test ends.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	conns, err := database.Open(config.Database{
		Driver:    "sqlite",
		WriterDSN: fmt.Sprintf("file:orderlens_%d?mode=memory&cache=shared", seq.Add(1)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.NewForDB(conns.Writer, conns.Driver, nil)
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return conns
}
