package graph

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role distinguishes which ledger side a record was observed on. Matching
// only compares records across roles.
type Role string

const (
	RoleSource       Role = "source"
	RoleTarget       Role = "target"
	RoleUnclassified Role = "unclassified"
)

// Opposite returns the counterpart role for candidate scans. Unclassified
// records have no counterpart.
func (r Role) Opposite() (Role, bool) {
	switch r {
	case RoleSource:
		return RoleTarget, true
	case RoleTarget:
		return RoleSource, true
	default:
		return RoleUnclassified, false
	}
}

// Kind is the lifecycle tag of a record. It starts at KindTransaction and
// moves forward as the record participates in matching.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindMatch       Kind = "match"
	KindUnmatched   Kind = "unmatched"
	KindError       Kind = "error"
)

// kindRank orders the lifecycle so upserts never move a record backwards.
var kindRank = map[Kind]int{
	KindTransaction: 0,
	KindMatch:       1,
	KindUnmatched:   1,
	KindError:       2,
}

// Relation is the type of a decided relationship between two records.
type Relation string

const (
	RelationMatches   Relation = "matches"
	RelationConflicts Relation = "conflicts"
	RelationRelated   Relation = "related"
	RelationDerived   Relation = "derived"
)

// FinancialRecord is one observed event from one side of a reconciliation
// job. Amount and currency are optional; Fields carries the opaque
// free-form attributes (referenceId, externalId, ...) that matching rules
// address by name.
type FinancialRecord struct {
	ID        string              `json:"id"`
	JobID     string              `json:"job_id"`
	Role      Role                `json:"role"`
	Kind      Kind                `json:"kind"`
	Amount    decimal.NullDecimal `json:"amount"`
	Currency  string              `json:"currency,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Fields    map[string]string   `json:"fields,omitempty"`

	// Confidence is set once the record participates in a match.
	Confidence float64 `json:"confidence,omitempty"`

	// Seq is the monotonic insertion sequence within the job's graph,
	// assigned by AddNode. It makes FIFO ingestion order observable.
	Seq uint64 `json:"seq"`
}

// MatchEdge is a directed relationship between two records of the same job.
type MatchEdge struct {
	ID           string    `json:"id"`
	SourceNodeID string    `json:"source_node_id"`
	TargetNodeID string    `json:"target_node_id"`
	Relation     Relation  `json:"relation"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// UnknownNodeError reports an edge or node operation that referenced a record
// absent from the job's graph.
type UnknownNodeError struct {
	JobID  string
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q in job %q", e.NodeID, e.JobID)
}
