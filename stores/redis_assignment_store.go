package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ticketops/access"
)

// RedisAssignmentStore keeps assignment rows as JSON fields of a per-user
// Redis hash (key: roleassign:{userID}, field: roleID). Revoke rewrites the
// row with is_active=false so the record survives for audit.
type RedisAssignmentStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "roleassign:%s"
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client, keyFmt: "roleassign:%s"}
}

func (r *RedisAssignmentStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisAssignmentStore) Assign(ctx context.Context, a *access.UserRoleAssignment) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(a.UserID), a.RoleID, string(b)).Err()
}

func (r *RedisAssignmentStore) Revoke(ctx context.Context, userID, roleID string) error {
	raw, err := r.client.HGet(ctx, r.key(userID), roleID).Result()
	if err == redis.Nil {
		return fmt.Errorf("assignment %s/%s: %w", userID, roleID, access.ErrNotFound)
	}
	if err != nil {
		return err
	}
	var a access.UserRoleAssignment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return err
	}
	a.IsActive = false
	b, _ := json.Marshal(&a)
	return r.client.HSet(ctx, r.key(userID), roleID, string(b)).Err()
}

func (r *RedisAssignmentStore) ListAssignments(ctx context.Context, userID string) ([]*access.UserRoleAssignment, error) {
	rows, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*access.UserRoleAssignment, 0, len(rows))
	for _, raw := range rows {
		a := &access.UserRoleAssignment{}
		if err := json.Unmarshal([]byte(raw), a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
