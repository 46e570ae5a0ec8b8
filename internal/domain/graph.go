package domain

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType is the relationship carried by a knowledge edge.
type EdgeType string

const (
	EdgeDerivedFrom EdgeType = "derived_from"
	EdgeDecidedIn   EdgeType = "decided_in"
	EdgeMentionedIn EdgeType = "mentioned_in"
	EdgeFollowsUp   EdgeType = "follows_up"
	EdgeRelatedTo   EdgeType = "related_to"
)

// KnowledgeEdge is a typed, directed relationship between two graph nodes.
// The persistence layer enforces uniqueness on (source, target, type);
// duplicates are rejected, not upserted.
type KnowledgeEdge struct {
	ID        uuid.UUID `json:"id"`
	SourceID  uuid.UUID `json:"source_id"`
	TargetID  uuid.UUID `json:"target_id"`
	EdgeType  EdgeType  `json:"edge_type"`
	Strength  float32   `json:"strength"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InferEdgeType maps a pair of knowledge types onto an edge type using a
// fixed precedence rule. The pair is ordered internally, so the result
// does not depend on argument order. First matching rule wins.
func InferEdgeType(a, b KnowledgeType) EdgeType {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}

	switch {
	case lo == KnowledgeTypeAction && hi == KnowledgeTypeMeeting:
		return EdgeDerivedFrom
	case lo == KnowledgeTypeDecision && hi == KnowledgeTypeMeeting:
		return EdgeDecidedIn
	case lo == KnowledgeTypeCommunication || hi == KnowledgeTypeCommunication:
		return EdgeMentionedIn
	case lo == KnowledgeTypeAction || hi == KnowledgeTypeAction:
		return EdgeFollowsUp
	default:
		return EdgeRelatedTo
	}
}
