package port

import (
	"context"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// ProjectDirectory resolves a project's owner and admin list.
type ProjectDirectory interface {
	GetAccess(ctx context.Context, projectID string) (*domain.ProjectAccess, error)
}
