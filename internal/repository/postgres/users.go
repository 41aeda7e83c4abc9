package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
)

// UserRepository answers user existence checks.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

// Exists reports whether a user with the given id is registered.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		Prefix("SELECT EXISTS (").
		From("tracker.users").
		Where(squirrel.Eq{"id": userID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build user exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}
