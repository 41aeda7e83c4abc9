package port

import "context"

// UserDirectory answers whether a user id refers to a known user.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
