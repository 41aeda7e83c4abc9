package domain

import (
	"strings"
	"time"
)

// RelationshipKind labels a dependency edge.
type RelationshipKind string

const (
	RelationshipBlocking  RelationshipKind = "BLOCKING"
	RelationshipBlockedBy RelationshipKind = "BLOCKED_BY"
	RelationshipRelatedTo RelationshipKind = "RELATED_TO"
)

// ParseRelationshipKind normalises a kind token. Empty input defaults to BLOCKING.
func ParseRelationshipKind(raw string) (RelationshipKind, bool) {
	kind := RelationshipKind(strings.ToUpper(strings.TrimSpace(raw)))
	switch kind {
	case "":
		return RelationshipBlocking, true
	case RelationshipBlocking, RelationshipBlockedBy, RelationshipRelatedTo:
		return kind, true
	default:
		return "", false
	}
}

// DependencyEdge states that DependentID cannot be considered complete while DependsOnID
// is outstanding. Edges are soft-deleted by clearing Active and never purged.
type DependencyEdge struct {
	ID          string
	DependentID string
	DependsOnID string
	ProjectID   string
	Kind        RelationshipKind
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Active      bool
}
