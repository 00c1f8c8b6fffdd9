package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/doorman/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "DEBUG"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestMetricsConcurrentCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordToken(TokenIssued)
			m.RecordRequest("/rest/login", http.MethodPost, http.StatusOK, 0)
			m.RecordCache("/bees/ancestors", "hit")
		}()
	}
	wg.Wait()
	m.RecordError("/rest/validate", http.MethodPost, "UNAUTHORIZED")

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.Tokens[TokenIssued])
	assert.Equal(t, int64(50), snap.Requests["/rest/login|POST|200"])
	assert.Equal(t, int64(50), snap.Cache["/bees/ancestors|hit"])
	assert.Equal(t, int64(1), snap.Errors["/rest/validate|POST|UNAUTHORIZED"])

	var nilMetrics *Metrics
	nilMetrics.RecordToken(TokenRejected)
	assert.Empty(t, nilMetrics.Snapshot().Tokens)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, generated)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", resp.Header.Get(RequestIDHeader))

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "secret-token")
		}
	}
	assert.Equal(t, int64(2), metrics.Snapshot().Requests["/ping|GET|200"])
}
