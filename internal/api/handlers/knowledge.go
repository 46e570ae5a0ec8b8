package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/service"
	"github.com/quarrylabs/sediment/internal/store"
)

type KnowledgeHandler struct {
	knowledgeStore domain.KnowledgeStore
	ledgerService  *service.LedgerService
	decayService   *service.DecayService
	logger         *zap.Logger
}

func NewKnowledgeHandler(ks domain.KnowledgeStore, ls *service.LedgerService, ds *service.DecayService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeStore: ks,
		ledgerService:  ls,
		decayService:   ds,
		logger:         logger,
	}
}

// GetByID returns one knowledge record and records the access.
func (h *KnowledgeHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	record, err := h.knowledgeStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "knowledge record not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	if err := h.decayService.RecordAccess(r.Context(), domain.KindKnowledge, id); err != nil {
		h.logger.Warn("failed to record knowledge access",
			zap.String("knowledge_id", id.String()), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, record)
}

type evidenceRequest struct {
	Evidence string `json:"evidence"`
}

func (h *KnowledgeHandler) Strengthen(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.ledgerService.StrengthenKnowledge(r.Context(), id, req.Evidence); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "strengthened"})
}

func (h *KnowledgeHandler) Contradict(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.ledgerService.ContradictKnowledge(r.Context(), id, req.Evidence); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "contradicted"})
}

type supersedeRequest struct {
	SuccessorID string `json:"successor_id"`
	Reasoning   string `json:"reasoning,omitempty"`
}

func (h *KnowledgeHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	oldID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	var req supersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newID, err := uuid.Parse(req.SuccessorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid successor_id")
		return
	}

	if err := h.ledgerService.SupersedeKnowledge(r.Context(), oldID, newID, req.Reasoning); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "superseded"})
}

// GetAuditLog returns the newest-first consolidation-log entries targeting
// one knowledge record.
func (h *KnowledgeHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge id")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	entries, err := h.ledgerService.GetAuditLog(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target_id": id,
		"entries":   entries,
	})
}
