package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// ProjectRepository reads project ownership from the project service's table.
type ProjectRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(exec pgExecutor) *ProjectRepository {
	return &ProjectRepository{exec: exec, builder: newBuilder()}
}

// GetAccess loads the owner and admin list of a project.
func (r *ProjectRepository) GetAccess(ctx context.Context, projectID string) (*domain.ProjectAccess, error) {
	stmt, args, err := r.builder.Select("id", "owner_id", "COALESCE(admin_ids, '{}')").
		From("tracker.projects").
		Where(squirrel.Eq{"id": projectID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select project sql: %w", err)
	}

	var access domain.ProjectAccess
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&access.ProjectID, &access.OwnerID, &access.AdminIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan project access: %w", err)
	}
	return &access, nil
}
