package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/orderlens/internal/store"
)

func TestRowAccessorsTolerateDriverTypes(t *testing.T) {
	row := store.Row{
		"id":      int64(7),
		"qty":     int32(3),
		"total":   []byte("12.50"),
		"price":   "4.25",
		"name":    []byte("Widget"),
		"code":    int64(42),
		"missing": nil,
	}

	assert.Equal(t, int64(7), row.Int64("id"))
	assert.Equal(t, 3, row.Int("qty"))
	assert.InDelta(t, 12.5, row.Float64("total"), 1e-9)
	assert.InDelta(t, 4.25, row.Float64("price"), 1e-9)
	assert.Equal(t, "Widget", row.String("name"))
	assert.Equal(t, "42", row.String("code"))
	assert.Equal(t, "", row.String("missing"))
	assert.Zero(t, row.Int64("absent"))
	assert.Zero(t, row.Float64("absent"))
}

func TestNumericAccessorsAcceptTheSameTypes(t *testing.T) {
	for name, v := range map[string]any{
		"int64":   int64(5),
		"int32":   int32(5),
		"int":     5,
		"float64": float64(5),
		"float32": float32(5),
		"bytes":   []byte("5"),
		"string":  "5",
	} {
		t.Run(name, func(t *testing.T) {
			row := store.Row{"n": v}
			assert.Equal(t, int64(5), row.Int64("n"))
			assert.InDelta(t, 5.0, row.Float64("n"), 1e-9)
		})
	}
}
