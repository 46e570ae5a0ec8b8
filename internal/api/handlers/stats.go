package handlers

import (
	"net/http"

	"github.com/quarrylabs/sediment/internal/service"
)

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(ss *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: ss}
}

// Get returns the cached lifecycle snapshot. ?refresh=true bypasses the
// TTL cache.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"

	stats, err := h.statsService.GetStats(r.Context(), force)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
