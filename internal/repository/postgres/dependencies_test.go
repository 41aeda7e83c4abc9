package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
)

var dependencyRowColumns = []string{
	"id", "dependent_ticket_id", "depends_on_ticket_id", "project_id", "relationship_type",
	"description", "created_by", "created_at", "updated_at", "active",
}

func TestDependencyRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	now := time.Now().UTC()
	edge := domain.DependencyEdge{
		ID:          "d-1",
		DependentID: "t-1",
		DependsOnID: "t-2",
		ProjectID:   "p-1",
		Kind:        domain.RelationshipBlocking,
		CreatedBy:   "u-1",
		CreatedAt:   now,
		UpdatedAt:   now,
		Active:      true,
	}

	mock.ExpectExec(`INSERT INTO tracker\.ticket_dependencies`).
		WithArgs("d-1", "t-1", "t-2", "p-1", "BLOCKING", nil, "u-1", now, now, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO tracker\.ticket_dependencies`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Create(context.Background(), edge); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Create(context.Background(), edge); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on duplicate pair, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_GetByPairIncludesInactive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(dependencyRowColumns).
		AddRow("d-1", "t-1", "t-2", "p-1", "RELATED_TO", "shared schema", "u-1", now, now, false)

	mock.ExpectQuery(`SELECT .*FROM tracker\.ticket_dependencies WHERE dependent_ticket_id = \$1 AND depends_on_ticket_id = \$2 LIMIT 1`).
		WithArgs("t-1", "t-2").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT .*FROM tracker\.ticket_dependencies`).
		WithArgs("t-2", "t-1").
		WillReturnError(pgx.ErrNoRows)

	edge, err := repo.GetByPair(context.Background(), "t-1", "t-2")
	if err != nil {
		t.Fatalf("GetByPair returned error: %v", err)
	}
	if edge.Active || edge.Kind != domain.RelationshipRelatedTo || edge.Description != "shared schema" {
		t.Fatalf("unexpected edge %+v", edge)
	}

	if _, err := repo.GetByPair(context.Background(), "t-2", "t-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_ListDependsOnFiltersActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(dependencyRowColumns).
		AddRow("d-1", "t-1", "t-2", "p-1", "BLOCKING", nil, "u-1", now, now, true).
		AddRow("d-2", "t-1", "t-3", "p-1", "BLOCKING", nil, "u-1", now, now, true)

	mock.ExpectQuery(`SELECT .*FROM tracker\.ticket_dependencies WHERE dependent_ticket_id = \$1 AND active = \$2 ORDER BY created_at ASC`).
		WithArgs("t-1", true).
		WillReturnRows(rows)

	edges, err := repo.ListDependsOn(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("ListDependsOn returned error: %v", err)
	}
	if len(edges) != 2 || edges[0].DependsOnID != "t-2" || edges[1].DependsOnID != "t-3" {
		t.Fatalf("unexpected edges %+v", edges)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_Counts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tracker\.ticket_dependencies WHERE dependent_ticket_id = \$1 AND active = \$2`).
		WithArgs("t-1", true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tracker\.ticket_dependencies WHERE depends_on_ticket_id = \$1 AND active = \$2`).
		WithArgs("t-1", true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	deps, err := repo.CountDependsOn(context.Background(), "t-1")
	if err != nil || deps != 3 {
		t.Fatalf("expected 3 dependencies, got %d, %v", deps, err)
	}
	dependents, err := repo.CountDependents(context.Background(), "t-1")
	if err != nil || dependents != 0 {
		t.Fatalf("expected 0 dependents, got %d, %v", dependents, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_SoftDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE tracker\.ticket_dependencies SET relationship_type = \$1, description = \$2, active = \$3, updated_at = \$4 WHERE id = \$5`).
		WithArgs("BLOCKING", nil, false, now, "d-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Update(context.Background(), domain.DependencyEdge{ID: "d-1", Kind: domain.RelationshipBlocking, UpdatedAt: now})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_CreateGuardedCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	now := time.Now().UTC()
	edge := domain.DependencyEdge{
		ID:          "d-1",
		DependentID: "t-1",
		DependsOnID: "t-2",
		ProjectID:   "p-1",
		Kind:        domain.RelationshipBlocking,
		CreatedBy:   "u-1",
		CreatedAt:   now,
		UpdatedAt:   now,
		Active:      true,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("tracker.ticket_dependencies:p-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT .*FROM tracker\.ticket_dependencies WHERE dependent_ticket_id = \$1 AND depends_on_ticket_id = \$2`).
		WithArgs("t-2", "t-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO tracker\.ticket_dependencies`).
		WithArgs("d-1", "t-1", "t-2", "p-1", "BLOCKING", nil, "u-1", now, now, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	guarded := false
	err = repo.CreateGuarded(context.Background(), edge, func(ctx context.Context, graph port.DependencyGraph) error {
		guarded = true
		_, err := graph.GetByPair(ctx, "t-2", "t-1")
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected reverse pair miss inside the transaction, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CreateGuarded returned error: %v", err)
	}
	if !guarded {
		t.Fatalf("guard was not run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDependencyRepository_CreateGuardedRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDependencyRepository(mock)
	edge := domain.DependencyEdge{ID: "d-2", DependentID: "t-2", DependsOnID: "t-1", ProjectID: "p-1", Active: true}
	rejected := errors.New("cycle")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("tracker.ticket_dependencies:p-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	err = repo.CreateGuarded(context.Background(), edge, func(context.Context, port.DependencyGraph) error {
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected guard error to be returned unchanged, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("tracker.ticket_dependencies:p-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`INSERT INTO tracker\.ticket_dependencies`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	if err := repo.CreateGuarded(context.Background(), edge, nil); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
