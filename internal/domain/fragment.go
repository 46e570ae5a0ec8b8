package domain

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeType classifies what a fragment or knowledge record is about.
type KnowledgeType string

const (
	KnowledgeTypeInsight       KnowledgeType = "insight"
	KnowledgeTypeDecision      KnowledgeType = "decision"
	KnowledgeTypeAction        KnowledgeType = "action"
	KnowledgeTypeMeeting       KnowledgeType = "meeting"
	KnowledgeTypeCommunication KnowledgeType = "communication"
	KnowledgeTypeFact          KnowledgeType = "fact"
)

func ValidKnowledgeType(t string) bool {
	switch KnowledgeType(t) {
	case KnowledgeTypeInsight, KnowledgeTypeDecision, KnowledgeTypeAction,
		KnowledgeTypeMeeting, KnowledgeTypeCommunication, KnowledgeTypeFact:
		return true
	}
	return false
}

// SourceType identifies which pipeline produced a fragment.
type SourceType string

const (
	SourceEmail    SourceType = "email"
	SourceDocument SourceType = "document"
	SourceCalendar SourceType = "calendar"
	SourceChat     SourceType = "chat"
	SourceManual   SourceType = "manual"
)

func ValidSourceType(s string) bool {
	switch SourceType(s) {
	case SourceEmail, SourceDocument, SourceCalendar, SourceChat, SourceManual:
		return true
	}
	return false
}

// RecordKind is the closed set of record kinds the persistence layer
// accepts for access recording. Validated at the boundary.
type RecordKind string

const (
	KindFragment  RecordKind = "fragment"
	KindKnowledge RecordKind = "knowledge"
)

func ValidRecordKind(k string) bool {
	switch RecordKind(k) {
	case KindFragment, KindKnowledge:
		return true
	}
	return false
}

// Fragment is a raw, low-trust unit of extracted knowledge. Content is
// immutable once ConsolidatedInto is set; the record survives as a
// tombstone referenced by its knowledge record.
type Fragment struct {
	ID               uuid.UUID     `json:"id"`
	Content          string        `json:"content"`
	Confidence       float32       `json:"confidence"`
	SourceType       SourceType    `json:"source_type"`
	KnowledgeType    KnowledgeType `json:"knowledge_type"`
	Embedding        []float32     `json:"-"`
	DecayScore       float32       `json:"decay_score"`
	AccessCount      int           `json:"access_count"`
	LastAccessedAt   *time.Time    `json:"last_accessed_at,omitempty"`
	ConsolidatedInto *uuid.UUID    `json:"consolidated_into,omitempty"`
	Archived         bool          `json:"archived"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Consolidated reports whether the fragment has been absorbed into a
// knowledge record and is therefore excluded from candidate pools.
func (f *Fragment) Consolidated() bool {
	return f.ConsolidatedInto != nil
}

type FragmentWithScore struct {
	Fragment
	Score float32 `json:"score"`
}
