package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// EstimateReader returns the latest estimate for an instrument.
type EstimateReader interface {
	Latest(ctx context.Context, exchange, symbol string) (domain.CostEstimate, error)
}

// EstimateHandler serves the most recent cost estimate.
type EstimateHandler struct {
	estimates EstimateReader
	exchange  string
	symbol    string
	logger    *slog.Logger
}

// NewEstimateHandler creates an EstimateHandler. exchange and symbol are used
// when the request does not name an instrument.
func NewEstimateHandler(estimates EstimateReader, exchange, symbol string, logger *slog.Logger) *EstimateHandler {
	return &EstimateHandler{
		estimates: estimates,
		exchange:  exchange,
		symbol:    symbol,
		logger:    logger.With(slog.String("handler", "estimate")),
	}
}

// GetLatest responds with the latest estimate, or 404 before the first one.
// GET /api/estimate?exchange=OKX&symbol=BTC-USDT-SWAP
func (h *EstimateHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	exchange := queryOr(r, "exchange", h.exchange)
	symbol := queryOr(r, "symbol", h.symbol)

	est, err := h.estimates.Latest(r.Context(), exchange, symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no estimate yet")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "read latest estimate failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, est)
	}
}
