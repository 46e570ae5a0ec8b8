package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/service"
)

// LifecycleHandler exposes the operator/scheduler triggers for decay,
// alignment and consolidation runs.
type LifecycleHandler struct {
	decayService     *service.DecayService
	plannerService   *service.PlannerService
	executorService  *service.ExecutorService
	alignmentService *service.AlignmentService
}

func NewLifecycleHandler(ds *service.DecayService, ps *service.PlannerService, es *service.ExecutorService, as *service.AlignmentService) *LifecycleHandler {
	return &LifecycleHandler{
		decayService:     ds,
		plannerService:   ps,
		executorService:  es,
		alignmentService: as,
	}
}

func (h *LifecycleHandler) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	result, err := h.decayService.RunDecayCycle(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type triggerAlignRequest struct {
	HoursBack int `json:"hours_back,omitempty"`
}

func (h *LifecycleHandler) TriggerAlign(w http.ResponseWriter, r *http.Request) {
	var req triggerAlignRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.alignmentService.RunAlignment(r.Context(), req.HoursBack)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *LifecycleHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	groups, err := h.plannerService.FindConsolidationCandidates(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

type consolidateRequest struct {
	FragmentIDs []string `json:"fragment_ids"`
	Title       string   `json:"title,omitempty"`
	Type        string   `json:"knowledge_type,omitempty"`
	Importance  string   `json:"importance,omitempty"`
	Actor       string   `json:"actor,omitempty"`
	Reasoning   string   `json:"reasoning,omitempty"`
}

func (h *LifecycleHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req consolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.FragmentIDs))
	for _, s := range req.FragmentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid fragment id: "+s)
			return
		}
		ids = append(ids, id)
	}

	if req.Type != "" && !domain.ValidKnowledgeType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid knowledge_type")
		return
	}
	if req.Importance != "" && !domain.ValidImportanceTier(req.Importance) {
		writeError(w, http.StatusBadRequest, "invalid importance")
		return
	}

	record, err := h.executorService.ConsolidateChunks(r.Context(), ids, service.ConsolidateMetadata{
		Title:         req.Title,
		KnowledgeType: domain.KnowledgeType(req.Type),
		Importance:    domain.ImportanceTier(req.Importance),
		Actor:         req.Actor,
		Reasoning:     req.Reasoning,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

type promoteRequest struct {
	FragmentID string `json:"fragment_id"`
	Title      string `json:"title,omitempty"`
	Type       string `json:"knowledge_type,omitempty"`
	Importance string `json:"importance,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
}

func (h *LifecycleHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := uuid.Parse(req.FragmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fragment_id")
		return
	}

	if req.Type != "" && !domain.ValidKnowledgeType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid knowledge_type")
		return
	}
	if req.Importance != "" && !domain.ValidImportanceTier(req.Importance) {
		writeError(w, http.StatusBadRequest, "invalid importance")
		return
	}

	record, err := h.executorService.PromoteChunk(r.Context(), id, domain.KnowledgeType(req.Type), service.ConsolidateMetadata{
		Title:      req.Title,
		Importance: domain.ImportanceTier(req.Importance),
		Actor:      req.Actor,
		Reasoning:  req.Reasoning,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}
