package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/feed"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeEstimates struct {
	est domain.CostEstimate
	err error
	got [2]string
}

func (f *fakeEstimates) Latest(_ context.Context, exchange, symbol string) (domain.CostEstimate, error) {
	f.got = [2]string{exchange, symbol}
	return f.est, f.err
}

type fakeParams struct {
	p domain.Parameters
}

func (f *fakeParams) Parameters() domain.Parameters { return f.p }

func (f *fakeParams) SetParameters(u domain.ParameterUpdate) (domain.Parameters, error) {
	next := u.Apply(f.p)
	if err := next.Validate(); err != nil {
		return f.p, err
	}
	f.p = next
	return next, nil
}

type fakeIngestor struct{ st feed.Status }

func (f fakeIngestor) Status() feed.Status { return f.st }

type fakeHistory struct {
	end *domain.StreamEnd
}

func (f fakeHistory) LastStreamEnd() (domain.StreamEnd, bool) {
	if f.end == nil {
		return domain.StreamEnd{}, false
	}
	return *f.end, true
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler()
	h.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-05-01T12:00:00Z", decodeBody(t, rec)["timestamp"])
}

func TestEstimateHandler(t *testing.T) {
	t.Run("defaults instrument", func(t *testing.T) {
		f := &fakeEstimates{est: domain.CostEstimate{NetCost: 6}}
		h := NewEstimateHandler(f, "OKX", "BTC-USDT-SWAP", discard())

		rec := httptest.NewRecorder()
		h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/estimate", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, [2]string{"OKX", "BTC-USDT-SWAP"}, f.got)
		assert.Equal(t, 6.0, decodeBody(t, rec)["net_cost"])
	})

	t.Run("query overrides", func(t *testing.T) {
		f := &fakeEstimates{}
		h := NewEstimateHandler(f, "OKX", "BTC-USDT-SWAP", discard())
		h.GetLatest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/estimate?symbol=ETH-USDT-SWAP", nil))
		assert.Equal(t, [2]string{"OKX", "ETH-USDT-SWAP"}, f.got)
	})

	t.Run("not found", func(t *testing.T) {
		h := NewEstimateHandler(&fakeEstimates{err: domain.ErrNotFound}, "OKX", "BTC-USDT-SWAP", discard())
		rec := httptest.NewRecorder()
		h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/estimate", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cache error", func(t *testing.T) {
		h := NewEstimateHandler(&fakeEstimates{err: errors.New("redis down")}, "OKX", "BTC-USDT-SWAP", discard())
		rec := httptest.NewRecorder()
		h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/estimate", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestParametersHandler(t *testing.T) {
	store := &fakeParams{p: domain.Parameters{USDAmount: 100, FeeTier: domain.FeeTier1, Volatility: 0.1}}
	h := NewParametersHandler(store, discard())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/parameters", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TIER1", decodeBody(t, rec)["fee_tier"])

	tests := []struct {
		name string
		body string
		want int
	}{
		{"partial update", `{"usd_amount": 250, "fee_tier": "tier2"}`, http.StatusOK},
		{"invalid amount", `{"usd_amount": -1}`, http.StatusBadRequest},
		{"unknown tier", `{"fee_tier": "VIP"}`, http.StatusBadRequest},
		{"empty", `{}`, http.StatusBadRequest},
		{"unknown field", `{"usd": 5}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Update(rec, httptest.NewRequest(http.MethodPut, "/api/parameters", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, domain.Parameters{USDAmount: 250, FeeTier: domain.FeeTier2, Volatility: 0.1}, store.p)
}

func TestStatusHandler(t *testing.T) {
	ing := fakeIngestor{st: feed.Status{Exchange: "OKX", Symbol: "BTC-USDT-SWAP", State: domain.StreamStreaming}}

	h := NewStatusHandler("full", ing, fakeHistory{})
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	body := decodeBody(t, rec)
	assert.Equal(t, "full", body["mode"])
	assert.Equal(t, "streaming", body["stream"].(map[string]any)["state"])
	assert.NotContains(t, body, "last_stream_end")

	h = NewStatusHandler("full", ing, fakeHistory{end: &domain.StreamEnd{State: domain.StreamFailed}})
	assert.Contains(t, h.Snapshot(), "last_stream_end")
}
