package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerEmitsSeverityAndComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "api", Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("tenant_id", "acme"))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "api", entry["component"])
	require.Equal(t, "acme", entry["tenant_id"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "loud"})
	require.Error(t, err)
}

func TestRequestLoggerStoresLogger(t *testing.T) {
	t.Parallel()

	var seen bool
	handler := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.True(t, seen)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestEnrichWithoutLoggerIsNoop(t *testing.T) {
	t.Parallel()

	ctx := Enrich(context.Background(), zap.String("k", "v"))
	_, ok := FromContext(ctx)
	require.False(t, ok)
	require.NotNil(t, OrDefault(ctx, nil))
}
