package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// PermissionCheckResponse answers a single permission probe for the caller.
type PermissionCheckResponse struct {
	ProjectID  string `json:"project_id"`
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// EffectiveRoleResponse reports the role the caller acts with in a project.
type EffectiveRoleResponse struct {
	ProjectID string `json:"project_id"`
	Role      string `json:"role,omitempty"`
	HasRole   bool   `json:"has_role"`
}

// MemberAssignRequest adds a user to a project.
type MemberAssignRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// MemberRoleUpdateRequest changes a member's role.
type MemberRoleUpdateRequest struct {
	Role string `json:"role" binding:"required"`
}

// MembershipPayload is the API view of a membership.
type MembershipPayload struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	InvitedBy   string    `json:"invited_by,omitempty"`
}

// MemberListResponse wraps the active members of a project.
type MemberListResponse struct {
	Members []MembershipPayload `json:"members"`
	Total   int                 `json:"total"`
}

// DependencyCreateRequest creates an edge: dependent_ticket_id depends on depends_on_ticket_id.
type DependencyCreateRequest struct {
	DependentTicketID string `json:"dependent_ticket_id" binding:"required"`
	DependsOnTicketID string `json:"depends_on_ticket_id" binding:"required"`
	ProjectID         string `json:"project_id" binding:"required"`
	RelationshipType  string `json:"relationship_type"`
	Description       string `json:"description"`
}

// DependencyUpdateRequest changes the descriptive fields of an edge.
type DependencyUpdateRequest struct {
	RelationshipType *string `json:"relationship_type"`
	Description      *string `json:"description"`
}

// CircularCheckRequest probes whether a prospective edge would be rejected as a cycle.
type CircularCheckRequest struct {
	DependentTicketID string `json:"dependent_ticket_id" binding:"required"`
	DependsOnTicketID string `json:"depends_on_ticket_id" binding:"required"`
}

// CircularCheckResponse answers a CircularCheckRequest.
type CircularCheckResponse struct {
	HasCircularDependency bool `json:"has_circular_dependency"`
}

// DependencyPayload is the API view of an edge.
type DependencyPayload struct {
	ID                string    `json:"id"`
	DependentTicketID string    `json:"dependent_ticket_id"`
	DependsOnTicketID string    `json:"depends_on_ticket_id"`
	ProjectID         string    `json:"project_id"`
	RelationshipType  string    `json:"relationship_type"`
	Description       string    `json:"description,omitempty"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Active            bool      `json:"active"`
}

// DependencyListResponse wraps a list of edges.
type DependencyListResponse struct {
	Dependencies []DependencyPayload `json:"dependencies"`
	Total        int                 `json:"total"`
}

// DependencyStatsResponse summarises a ticket's position in the graph.
type DependencyStatsResponse struct {
	TicketID        string `json:"ticket_id"`
	DependsOnCount  int    `json:"depends_on_count"`
	DependentsCount int    `json:"dependents_count"`
	Blocked         bool   `json:"blocked"`
}

// CanCompleteResponse reports whether open dependencies block a ticket.
type CanCompleteResponse struct {
	TicketID    string `json:"ticket_id"`
	CanComplete bool   `json:"can_complete"`
	Reason      string `json:"reason,omitempty"`
}

// CompletionResponse is the completion gate's verdict for the caller.
type CompletionResponse struct {
	ProjectID string `json:"project_id"`
	TicketID  string `json:"ticket_id"`
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
}

func newMembershipPayload(m domain.Membership) MembershipPayload {
	return MembershipPayload{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		UserID:      m.UserID,
		Role:        string(m.Role),
		Permissions: m.Permissions.Strings(),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
		UpdatedAt:   m.UpdatedAt,
		InvitedBy:   m.InvitedBy,
	}
}

func newDependencyPayload(e domain.DependencyEdge) DependencyPayload {
	return DependencyPayload{
		ID:                e.ID,
		DependentTicketID: e.DependentID,
		DependsOnTicketID: e.DependsOnID,
		ProjectID:         e.ProjectID,
		RelationshipType:  string(e.Kind),
		Description:       e.Description,
		CreatedBy:         e.CreatedBy,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		Active:            e.Active,
	}
}

func newDependencyList(edges []domain.DependencyEdge) DependencyListResponse {
	out := make([]DependencyPayload, 0, len(edges))
	for _, e := range edges {
		out = append(out, newDependencyPayload(e))
	}
	return DependencyListResponse{Dependencies: out, Total: len(out)}
}
