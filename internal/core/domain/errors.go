package domain

import "errors"

// Error kinds shared by every layer. Concrete errors wrap one of these so callers can
// branch with errors.Is on the kind alone.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrCircularDependency = errors.New("circular dependency")
	ErrInvalidArgument    = errors.New("invalid argument")
)
