package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	h := CorrelationID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	})))

	r := httptest.NewRequest(http.MethodPost, "/purchases", nil)
	r.Header.Set(CorrelationIDHeader, "corr-9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()

	assert.Equal(t, "http request", entry.Message)
	assert.Equal(t, "/purchases", fields["path"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.EqualValues(t, 4, fields["size"])
	assert.Equal(t, "corr-9", fields["correlation_id"])
}
