package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

const (
	defaultMembershipPrefix = "tracker:membership"
	defaultMembershipTTL    = 5 * time.Minute

	// evictedMarker occupies a key after eviction so a read-through that loaded the
	// membership before the eviction cannot repopulate it.
	evictedMarker = "evicted"
)

type membershipSnapshot struct {
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

// MembershipCache stores membership snapshots as JSON under <prefix>:<project>:<user>.
// Writes only fill empty keys; eviction leaves a marker for one TTL that reads treat as a miss.
type MembershipCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewMembershipCache constructs a cache. Empty prefix or non-positive TTL fall back to defaults.
func NewMembershipCache(client *red.Client, keyPrefix string, ttl time.Duration) *MembershipCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultMembershipPrefix
	}
	if ttl <= 0 {
		ttl = defaultMembershipTTL
	}
	return &MembershipCache{client: client, prefix: prefix, ttl: ttl}
}

// GetMembership returns the cached snapshot or repository.ErrNotFound on a miss.
func (c *MembershipCache) GetMembership(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	key, err := c.key(projectID, userID)
	if err != nil {
		return nil, err
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get membership: %w", err)
	}
	if string(raw) == evictedMarker {
		return nil, repository.ErrNotFound
	}

	var snap membershipSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cached membership: %w", err)
	}

	return &domain.Membership{
		ID:          snap.ID,
		ProjectID:   snap.ProjectID,
		UserID:      snap.UserID,
		Role:        domain.Role(snap.Role),
		Permissions: domain.PermissionSetFromStrings(snap.Permissions),
		Status:      domain.MembershipStatus(snap.Status),
		JoinedAt:    snap.JoinedAt,
		UpdatedAt:   snap.UpdatedAt,
		InvitedBy:   snap.InvitedBy,
	}, nil
}

// SetMembership stores a snapshot with the configured TTL unless the key already holds a
// snapshot or an eviction marker.
func (c *MembershipCache) SetMembership(ctx context.Context, m domain.Membership) error {
	key, err := c.key(m.ProjectID, m.UserID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(membershipSnapshot{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		UserID:      m.UserID,
		Role:        string(m.Role),
		Permissions: m.Permissions.Strings(),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
		UpdatedAt:   m.UpdatedAt,
		InvitedBy:   m.InvitedBy,
	})
	if err != nil {
		return fmt.Errorf("encode membership: %w", err)
	}

	if err := c.client.SetNX(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set membership: %w", err)
	}
	return nil
}

// DeleteMembership evicts a snapshot by overwriting it with the eviction marker. Evicting a
// missing key is not an error.
func (c *MembershipCache) DeleteMembership(ctx context.Context, projectID, userID string) error {
	key, err := c.key(projectID, userID)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, evictedMarker, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis delete membership: %w", err)
	}
	return nil
}

func (c *MembershipCache) key(projectID, userID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" || userID == "" {
		return "", fmt.Errorf("project id and user id are required")
	}
	return fmt.Sprintf("%s:%s:%s", c.prefix, projectID, userID), nil
}
