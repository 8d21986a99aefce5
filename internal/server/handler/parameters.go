package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// ParameterStore reads and updates the live estimator parameters.
type ParameterStore interface {
	Parameters() domain.Parameters
	SetParameters(u domain.ParameterUpdate) (domain.Parameters, error)
}

// ParametersHandler exposes the live parameters.
type ParametersHandler struct {
	store  ParameterStore
	logger *slog.Logger
}

// NewParametersHandler serves and updates the parameters held by store.
func NewParametersHandler(store ParameterStore, logger *slog.Logger) *ParametersHandler {
	return &ParametersHandler{store: store, logger: logger.With(slog.String("handler", "parameters"))}
}

// Get responds with the current parameters.
// GET /api/parameters
func (h *ParametersHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Parameters())
}

// Update merges a partial update and responds with the resulting parameters.
// The change applies from the next order book message.
// PUT /api/parameters
func (h *ParametersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u domain.ParameterUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if u.Empty() {
		writeError(w, http.StatusBadRequest, "no parameters given")
		return
	}

	p, err := h.store.SetParameters(u)
	switch {
	case errors.Is(err, domain.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.ErrorContext(r.Context(), "update parameters failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, p)
	}
}
