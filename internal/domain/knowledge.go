package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportanceTier ranks how load-bearing a knowledge record is.
type ImportanceTier string

const (
	ImportanceLow      ImportanceTier = "low"
	ImportanceMedium   ImportanceTier = "medium"
	ImportanceHigh     ImportanceTier = "high"
	ImportanceCritical ImportanceTier = "critical"
)

func ValidImportanceTier(t string) bool {
	switch ImportanceTier(t) {
	case ImportanceLow, ImportanceMedium, ImportanceHigh, ImportanceCritical:
		return true
	}
	return false
}

// Provenance records who created a knowledge record and why.
type Provenance struct {
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeRecord is a durable, structured unit produced by merging or
// promoting fragments. A record with a non-nil SupersededBy is read-only
// history; live queries should prefer its successor.
type KnowledgeRecord struct {
	ID                 uuid.UUID      `json:"id"`
	Title              string         `json:"title"`
	Content            string         `json:"content"`
	KnowledgeType      KnowledgeType  `json:"knowledge_type"`
	Importance         ImportanceTier `json:"importance"`
	Confidence         float32        `json:"confidence"`
	Embedding          []float32      `json:"-"`
	DecayScore         float32        `json:"decay_score"`
	ValidationCount    int            `json:"validation_count"`
	ContradictionCount int            `json:"contradiction_count"`
	SourceFragmentIDs  []uuid.UUID    `json:"source_fragment_ids"`
	Provenance         Provenance     `json:"provenance"`
	SupersededBy       *uuid.UUID     `json:"superseded_by,omitempty"`
	AccessCount        int            `json:"access_count"`
	Archived           bool           `json:"archived"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Superseded reports whether the record has been replaced by a successor.
func (k *KnowledgeRecord) Superseded() bool {
	return k.SupersededBy != nil
}
