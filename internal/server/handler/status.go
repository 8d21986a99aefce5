package handler

import (
	"net/http"

	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/feed"
)

// IngestorStatus exposes the live ingestion state.
type IngestorStatus interface {
	Status() feed.Status
}

// StreamHistory exposes how the previous session ended.
type StreamHistory interface {
	LastStreamEnd() (domain.StreamEnd, bool)
}

// StatusHandler serves the run mode and stream state for the dashboard.
type StatusHandler struct {
	mode     string
	ingestor IngestorStatus
	history  StreamHistory
}

func NewStatusHandler(mode string, ingestor IngestorStatus, history StreamHistory) *StatusHandler {
	return &StatusHandler{mode: mode, ingestor: ingestor, history: history}
}

// Snapshot is the status document, also sent to websocket clients on connect.
func (h *StatusHandler) Snapshot() map[string]any {
	out := map[string]any{
		"mode":   h.mode,
		"stream": h.ingestor.Status(),
	}
	if end, ok := h.history.LastStreamEnd(); ok {
		out["last_stream_end"] = end
	}
	return out
}

// GetStatus responds with the current mode and stream status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}
