package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/domain"
	"github.com/quarrylabs/sediment/internal/service"
	"github.com/quarrylabs/sediment/internal/store"
)

type FragmentHandler struct {
	fragmentStore domain.FragmentStore
	decayService  *service.DecayService
	logger        *zap.Logger
}

func NewFragmentHandler(fs domain.FragmentStore, ds *service.DecayService, logger *zap.Logger) *FragmentHandler {
	return &FragmentHandler{fragmentStore: fs, decayService: ds, logger: logger}
}

type createFragmentRequest struct {
	Content       string    `json:"content"`
	SourceType    string    `json:"source_type"`
	KnowledgeType string    `json:"knowledge_type"`
	Confidence    float32   `json:"confidence,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// Create ingests one fragment. Embeddings are precomputed upstream; a
// fragment without one is stored but skipped by similarity scans.
func (h *FragmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if !domain.ValidSourceType(req.SourceType) {
		writeError(w, http.StatusBadRequest, "invalid source_type")
		return
	}
	if !domain.ValidKnowledgeType(req.KnowledgeType) {
		writeError(w, http.StatusBadRequest, "invalid knowledge_type")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be in [0,1]")
		return
	}

	fragment := &domain.Fragment{
		Content:       req.Content,
		SourceType:    domain.SourceType(req.SourceType),
		KnowledgeType: domain.KnowledgeType(req.KnowledgeType),
		Confidence:    req.Confidence,
		Embedding:     req.Embedding,
	}

	if err := h.fragmentStore.Create(r.Context(), fragment); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fragment)
}

// GetByID returns one fragment and records the access, nudging its decay
// score upward. Access recording is best effort.
func (h *FragmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fragment id")
		return
	}

	fragment, err := h.fragmentStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "fragment not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	if err := h.decayService.RecordAccess(r.Context(), domain.KindFragment, id); err != nil {
		h.logger.Warn("failed to record fragment access",
			zap.String("fragment_id", id.String()), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, fragment)
}
