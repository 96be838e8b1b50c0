package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Seed.Customers)
	assert.Equal(t, 8, cfg.Seed.Products)
	assert.Equal(t, 50, cfg.Seed.Orders)
	assert.Equal(t, 3, cfg.Seed.ItemsPerOrder)
	assert.Equal(t, 1, cfg.Audit.RepeatThreshold)
	assert.Equal(t, 10, cfg.Audit.RoundTripBudget)
	assert.Equal(t, "orderlens.scenarios", cfg.Messaging.Kafka.Topic)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
}

func TestNewOverridesAndNormalisation(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_WRITER_DSN", "file:orderlens.db")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("SEED_ORDERS", "-4")
	t.Setenv("AUDIT_REPEAT_THRESHOLD", "0")
	t.Setenv("AUDIT_ROUNDTRIP_BUDGET", "25")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("CACHE_DEFAULT_TTL", "30s")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Zero(t, cfg.Seed.Orders)
	assert.Equal(t, 1, cfg.Audit.RepeatThreshold)
	assert.Equal(t, 25, cfg.Audit.RoundTripBudget)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, 30*time.Second, cfg.Cache.DefaultTTL)
}

func TestNewRejectsEmptySeed(t *testing.T) {
	t.Setenv("SEED_CUSTOMERS", "0")

	_, err := New()
	assert.Error(t, err)
}

func TestNewRejectsUnknownCacheDriver(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memcached")

	_, err := New()
	assert.Error(t, err)
}

func TestNewReportsMalformedValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")
	t.Setenv("CACHE_DEFAULT_TTL", "soon")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "CACHE_DEFAULT_TTL")
}

func TestNewValidatesEnums(t *testing.T) {
	tests := map[string]string{
		"DB_DRIVER":          "oracle",
		"OBS_LOG_ENCODING":   "xml",
		"OBS_TRACE_EXPORTER": "jaeger",
		"GRPC_PORT":          "70000",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	e := &env{}

	assert.Equal(t, []string{"a:9092", "b:9092"}, e.List("KAFKA_BROKERS", nil))
	assert.Equal(t, []string{"x"}, e.List("ORDERLENS_UNSET_LIST", []string{"x"}))
	assert.NoError(t, e.Err())
}
