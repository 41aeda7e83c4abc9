package repository

import (
	"fmt"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = fmt.Errorf("repository: %w", domain.ErrConflict)
)
