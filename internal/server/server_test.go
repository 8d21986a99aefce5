package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/feed"
	"github.com/alanyoungcy/tradecost/internal/metrics"
	"github.com/alanyoungcy/tradecost/internal/server/handler"
)

type stubBackend struct {
	params domain.Parameters
}

func (s *stubBackend) Status() feed.Status { return feed.Status{State: domain.StreamStreaming} }

func (s *stubBackend) LastStreamEnd() (domain.StreamEnd, bool) { return domain.StreamEnd{}, false }

func (s *stubBackend) Latest(context.Context, string, string) (domain.CostEstimate, error) {
	return domain.CostEstimate{}, domain.ErrNotFound
}

func (s *stubBackend) Parameters() domain.Parameters { return s.params }

func (s *stubBackend) SetParameters(u domain.ParameterUpdate) (domain.Parameters, error) {
	s.params = u.Apply(s.params)
	return s.params, s.params.Validate()
}

func newTestServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := &stubBackend{params: domain.Parameters{USDAmount: 100, FeeTier: domain.FeeTier1}}
	return NewServer(Config{APIKey: apiKey}, Handlers{
		Health:     handler.NewHealthHandler(),
		Status:     handler.NewStatusHandler("full", b, b),
		Estimate:   handler.NewEstimateHandler(b, "OKX", "BTC-USDT-SWAP", logger),
		Parameters: handler.NewParametersHandler(b, logger),
		Metrics:    metrics.NewRegistry(false).Handler(),
	}, nil, logger)
}

func do(t *testing.T, h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := newTestServer("k").Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/status", "", "").Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/status", "", "k").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/estimate", "", "k").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/parameters", "", "k").Code)

	rec := do(t, h, http.MethodPut, "/api/parameters", `{"usd_amount": 500}`, "k")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"usd_amount":500`)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/api/parameters", "{}", "k").Code)
}
