package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerAction is the kind of lifecycle event a log entry records.
type LedgerAction string

const (
	ActionMerge      LedgerAction = "merge"
	ActionPromote    LedgerAction = "promote"
	ActionStrengthen LedgerAction = "strengthen"
	ActionContradict LedgerAction = "contradict"
	ActionSupersede  LedgerAction = "supersede"
)

func ValidLedgerAction(a string) bool {
	switch LedgerAction(a) {
	case ActionMerge, ActionPromote, ActionStrengthen, ActionContradict, ActionSupersede:
		return true
	}
	return false
}

// LedgerEntry is an append-only audit record. Entries are never mutated or
// deleted; the ledger is the sole ground truth for how knowledge evolved.
type LedgerEntry struct {
	ID               uuid.UUID    `json:"id"`
	Action           LedgerAction `json:"action"`
	SourceIDs        []uuid.UUID  `json:"source_ids"`
	TargetID         uuid.UUID    `json:"target_id"`
	Actor            string       `json:"actor"`
	Reasoning        string       `json:"reasoning,omitempty"`
	ConfidenceBefore float32      `json:"confidence_before"`
	ConfidenceAfter  float32      `json:"confidence_after"`
	CreatedAt        time.Time    `json:"created_at"`
}
