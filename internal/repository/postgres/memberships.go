package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

const membershipsTable = "tracker.project_members"

var membershipColumns = []string{
	"id",
	"project_id",
	"user_id",
	"role",
	"permissions",
	"status",
	"joined_at",
	"updated_at",
	"invited_by",
}

// MembershipRepository persists memberships. A unique index on (project_id, user_id)
// backs the one-membership-per-pair invariant.
type MembershipRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMembershipRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewMembershipRepository(exec pgExecutor) *MembershipRepository {
	return &MembershipRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create inserts a membership. A duplicate (project, user) pair yields repository.ErrConflict.
func (r *MembershipRepository) Create(ctx context.Context, m domain.Membership) error {
	stmt, args, err := r.builder.Insert(membershipsTable).
		Columns(membershipColumns...).
		Values(
			m.ID,
			m.ProjectID,
			m.UserID,
			string(m.Role),
			m.Permissions.Strings(),
			string(m.Status),
			m.JoinedAt,
			m.UpdatedAt,
			nullableString(m.InvitedBy),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert membership sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// Get loads the membership for (projectID, userID).
func (r *MembershipRepository) Get(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	stmt, args, err := r.builder.Select(membershipColumns...).
		From(membershipsTable).
		Where(squirrel.Eq{"project_id": projectID, "user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select membership sql: %w", err)
	}

	m, err := scanMembership(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return m, nil
}

// Update overwrites role, permissions, status and update time.
func (r *MembershipRepository) Update(ctx context.Context, m domain.Membership) error {
	stmt, args, err := r.builder.Update(membershipsTable).
		Set("role", string(m.Role)).
		Set("permissions", m.Permissions.Strings()).
		Set("status", string(m.Status)).
		Set("updated_at", m.UpdatedAt).
		Where(squirrel.Eq{"project_id": m.ProjectID, "user_id": m.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update membership sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the membership for (projectID, userID).
func (r *MembershipRepository) Delete(ctx context.Context, projectID, userID string) error {
	stmt, args, err := r.builder.Delete(membershipsTable).
		Where(squirrel.Eq{"project_id": projectID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete membership sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByProject lists memberships ordered by join time. An empty status matches all.
func (r *MembershipRepository) ListByProject(ctx context.Context, projectID string, status domain.MembershipStatus) ([]domain.Membership, error) {
	query := r.builder.Select(membershipColumns...).
		From(membershipsTable).
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("joined_at ASC", "user_id ASC")
	if status != "" {
		query = query.Where(squirrel.Eq{"status": string(status)})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list memberships sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var (
		m           domain.Membership
		role        string
		status      string
		permissions []string
		invitedBy   sql.NullString
	)
	if err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.UserID,
		&role,
		&permissions,
		&status,
		&m.JoinedAt,
		&m.UpdatedAt,
		&invitedBy,
	); err != nil {
		return nil, err
	}

	m.Role = domain.Role(role)
	m.Status = domain.MembershipStatus(status)
	m.Permissions = domain.PermissionSetFromStrings(permissions)
	m.InvitedBy = stringFromNull(invitedBy)
	return &m, nil
}
