package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
)

const dependenciesTable = "tracker.ticket_dependencies"

var dependencyColumns = []string{
	"id",
	"dependent_ticket_id",
	"depends_on_ticket_id",
	"project_id",
	"relationship_type",
	"description",
	"created_by",
	"created_at",
	"updated_at",
	"active",
}

// DependencyRepository persists dependency edges. A unique index on
// (dependent_ticket_id, depends_on_ticket_id) rejects duplicate pairs; rows are never
// deleted. Guarded creations in one project are serialized by a transaction-scoped advisory
// lock.
type DependencyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDependencyRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewDependencyRepository(exec pgExecutor) *DependencyRepository {
	return &DependencyRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *DependencyRepository) WithTx(tx pgx.Tx) *DependencyRepository {
	if tx == nil {
		return r
	}
	return &DependencyRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// CreateGuarded opens a transaction, takes the project's advisory lock, runs guard against
// the transaction and inserts the edge. Any failure rolls the transaction back.
func (r *DependencyRepository) CreateGuarded(ctx context.Context, edge domain.DependencyEdge, guard port.DependencyGuard) (err error) {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		return errors.New("dependency repository executor cannot open transactions")
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dependency tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, lockProjectDependenciesSQL, dependencyLockKey(edge.ProjectID)); err != nil {
		return fmt.Errorf("lock project dependencies: %w", err)
	}

	txRepo := r.WithTx(tx)
	if guard != nil {
		if err = guard(ctx, txRepo); err != nil {
			return err
		}
	}
	if err = txRepo.Create(ctx, edge); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dependency tx: %w", err)
	}
	return nil
}

const lockProjectDependenciesSQL = "SELECT pg_advisory_xact_lock(hashtext($1))"

func dependencyLockKey(projectID string) string {
	return dependenciesTable + ":" + projectID
}

// Create inserts an edge. A duplicate ordered pair yields repository.ErrConflict.
func (r *DependencyRepository) Create(ctx context.Context, edge domain.DependencyEdge) error {
	stmt, args, err := r.builder.Insert(dependenciesTable).
		Columns(dependencyColumns...).
		Values(
			edge.ID,
			edge.DependentID,
			edge.DependsOnID,
			edge.ProjectID,
			string(edge.Kind),
			nullableString(edge.Description),
			edge.CreatedBy,
			edge.CreatedAt,
			edge.UpdatedAt,
			edge.Active,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert dependency sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert dependency: %w", err)
	}
	return nil
}

// GetByID loads an edge whether or not it is active.
func (r *DependencyRepository) GetByID(ctx context.Context, id string) (*domain.DependencyEdge, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByPair loads the edge for the ordered pair whether or not it is active.
func (r *DependencyRepository) GetByPair(ctx context.Context, dependentID, dependsOnID string) (*domain.DependencyEdge, error) {
	return r.getOne(ctx, squirrel.Eq{"dependent_ticket_id": dependentID, "depends_on_ticket_id": dependsOnID})
}

// Update overwrites the mutable attributes of an edge.
func (r *DependencyRepository) Update(ctx context.Context, edge domain.DependencyEdge) error {
	stmt, args, err := r.builder.Update(dependenciesTable).
		Set("relationship_type", string(edge.Kind)).
		Set("description", nullableString(edge.Description)).
		Set("active", edge.Active).
		Set("updated_at", edge.UpdatedAt).
		Where(squirrel.Eq{"id": edge.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update dependency sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update dependency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListDependsOn lists the active edges leaving ticketID.
func (r *DependencyRepository) ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	return r.listActive(ctx, squirrel.Eq{"dependent_ticket_id": ticketID})
}

// ListDependents lists the active edges pointing at ticketID.
func (r *DependencyRepository) ListDependents(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	return r.listActive(ctx, squirrel.Eq{"depends_on_ticket_id": ticketID})
}

// ListByProject lists the active edges of a project.
func (r *DependencyRepository) ListByProject(ctx context.Context, projectID string) ([]domain.DependencyEdge, error) {
	return r.listActive(ctx, squirrel.Eq{"project_id": projectID})
}

// CountDependsOn counts the active edges leaving ticketID.
func (r *DependencyRepository) CountDependsOn(ctx context.Context, ticketID string) (int, error) {
	return r.countActive(ctx, squirrel.Eq{"dependent_ticket_id": ticketID})
}

// CountDependents counts the active edges pointing at ticketID.
func (r *DependencyRepository) CountDependents(ctx context.Context, ticketID string) (int, error) {
	return r.countActive(ctx, squirrel.Eq{"depends_on_ticket_id": ticketID})
}

func (r *DependencyRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.DependencyEdge, error) {
	stmt, args, err := r.builder.Select(dependencyColumns...).
		From(dependenciesTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select dependency sql: %w", err)
	}

	edge, err := scanDependency(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan dependency: %w", err)
	}
	return edge, nil
}

func (r *DependencyRepository) listActive(ctx context.Context, where squirrel.Eq) ([]domain.DependencyEdge, error) {
	stmt, args, err := r.builder.Select(dependencyColumns...).
		From(dependenciesTable).
		Where(where).
		Where(squirrel.Eq{"active": true}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list dependencies sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var edges []domain.DependencyEdge
	for rows.Next() {
		edge, err := scanDependency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		edges = append(edges, *edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}
	return edges, nil
}

func (r *DependencyRepository) countActive(ctx context.Context, where squirrel.Eq) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From(dependenciesTable).
		Where(where).
		Where(squirrel.Eq{"active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count dependencies sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dependencies: %w", err)
	}
	return int(count), nil
}

func scanDependency(row pgx.Row) (*domain.DependencyEdge, error) {
	var (
		edge        domain.DependencyEdge
		kind        string
		description sql.NullString
	)
	if err := row.Scan(
		&edge.ID,
		&edge.DependentID,
		&edge.DependsOnID,
		&edge.ProjectID,
		&kind,
		&description,
		&edge.CreatedBy,
		&edge.CreatedAt,
		&edge.UpdatedAt,
		&edge.Active,
	); err != nil {
		return nil, err
	}

	edge.Kind = domain.RelationshipKind(kind)
	edge.Description = stringFromNull(description)
	return &edge, nil
}
