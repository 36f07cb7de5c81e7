package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Set stored as a Redis set under one run-scoped key. The TTL only
// bounds keys left behind by runs that died before Discard.
type Redis struct {
	cli *redis.Client
	key string
	ttl time.Duration
}

// KeyFor returns the Redis key for one run over the literal st/et arguments.
func KeyFor(st, et, runID string) string {
	return "quad9:domains:" + st + ":" + et + ":" + runID
}

func NewRedis(ctx context.Context, addr, key string, ttl time.Duration) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{cli: cli, key: key, ttl: ttl}, nil
}

func (r *Redis) Add(ctx context.Context, domains ...string) (int, error) {
	if len(domains) == 0 {
		return 0, nil
	}
	members := make([]interface{}, len(domains))
	for i, d := range domains {
		members[i] = d
	}

	pipe := r.cli.TxPipeline()
	added := pipe.SAdd(ctx, r.key, members...)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis sadd %s: %w", r.key, err)
	}
	return int(added.Val()), nil
}

func (r *Redis) Members(ctx context.Context) ([]string, error) {
	out, err := r.cli.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", r.key, err)
	}
	return out, nil
}

// Discard deletes the run's key.
func (r *Redis) Discard(ctx context.Context) error {
	if err := r.cli.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.cli.Close() }
