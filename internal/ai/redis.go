package ai

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
	redis "github.com/redis/go-redis/v9"
)

// usageKeyPrefix namespaces the per-user counter hashes.
const usageKeyPrefix = "ai_usage:"

// RedisUsage reads counters stored as hashes ai_usage:<uid> with the fields
// attempts and blocked.
type RedisUsage struct {
	client *redis.Client
}

// OpenRedis connects to addr and verifies the server answers.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w: %w", model.ErrRemoteUnavailable, err)
	}
	return client, nil
}

// NewRedisUsage reads counters through client.
func NewRedisUsage(client *redis.Client) *RedisUsage {
	return &RedisUsage{client: client}
}

// Attempts reads the ai_usage hash of userID.
func (r *RedisUsage) Attempts(ctx context.Context, userID string) (UsageRecord, bool, error) {
	fields, err := r.client.HGetAll(ctx, usageKeyPrefix+userID).Result()
	if err != nil {
		return UsageRecord{}, false, fmt.Errorf("read usage: %w", err)
	}
	if len(fields) == 0 {
		return UsageRecord{}, false, nil
	}

	var rec UsageRecord
	if v, ok := fields["attempts"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return UsageRecord{}, false, fmt.Errorf("parse attempts %q: %w", v, err)
		}
		rec.Attempts = n
	}
	if v, ok := fields["blocked"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return UsageRecord{}, false, fmt.Errorf("parse blocked %q: %w", v, err)
		}
		rec.Blocked = b
	}
	return rec, true, nil
}
