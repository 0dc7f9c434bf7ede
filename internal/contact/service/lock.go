package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pstrings "coalesce/pkg/platform/strings"
)

// Locker serializes identify invocations whose attribute sets intersect.
// Acquire blocks until every key is held and returns a release function.
// Invocations touching disjoint key sets proceed in parallel.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// lockKeys derives the mutual-exclusion keys for one request. Values are
// normalized only for keying; matching itself stays exact-string.
func lockKeys(email, phone string) []string {
	var keys []string
	if email != "" {
		keys = append(keys, "email:"+pstrings.NormalizeKey(email))
	}
	if phone != "" {
		keys = append(keys, "phone:"+pstrings.NormalizeKey(phone))
	}
	return keys
}

// numLockShards distributes attribute keys over independent mutexes so
// unrelated requests rarely contend.
const numLockShards = 128

// ShardedLocker provides in-process mutual exclusion using sharded mutexes.
// Shard indexes are deduplicated and locked in ascending order, which keeps
// concurrent acquisitions of overlapping key sets deadlock-free.
type ShardedLocker struct {
	shards [numLockShards]sync.Mutex
}

func NewShardedLocker() *ShardedLocker {
	return &ShardedLocker{}
}

func (l *ShardedLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shards := shardSet(keys)
	for _, i := range shards {
		l.shards[i].Lock()
	}
	return func() {
		for i := len(shards) - 1; i >= 0; i-- {
			l.shards[shards[i]].Unlock()
		}
	}, nil
}

// shardSet maps keys to a sorted, deduplicated list of shard indexes.
func shardSet(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	shards := make([]int, 0, len(keys))
	for _, key := range keys {
		i := int(hashLockKey(key) % numLockShards)
		if _, ok := seen[i]; !ok {
			seen[i] = struct{}{}
			shards = append(shards, i)
		}
	}
	sort.Ints(shards)
	return shards
}

// hashLockKey uses FNV-1a for good distribution over the shard space.
func hashLockKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

const (
	redisLockPrefix      = "coalesce:lock:"
	defaultRedisLockTTL  = 10 * time.Second
	defaultRedisLockPoll = 25 * time.Millisecond
)

// redisReleaseScript deletes a lock key only when the holder token matches,
// so an expired-and-reacquired lock is never released by the old holder.
var redisReleaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker provides cross-instance mutual exclusion using per-key SET NX
// with a TTL. Keys are acquired in sorted order to avoid deadlock between
// overlapping acquisitions.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    defaultRedisLockTTL,
		poll:   defaultRedisLockPoll,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	token := uuid.NewString()
	held := make([]string, 0, len(sorted))
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = redisReleaseScript.Run(ctx, l.client, []string{held[i]}, token).Err()
		}
	}

	for _, key := range sorted {
		fullKey := redisLockPrefix + key
		if err := l.lockOne(ctx, fullKey, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, fullKey)
	}
	return release, nil
}

func (l *RedisLocker) lockOne(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
