package staging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// appendScript pushes the payload only when it was not seen before.
var appendScript = redis.NewScript(`
if redis.call("SADD", KEYS[2], ARGV[1]) == 1 then
	redis.call("RPUSH", KEYS[1], ARGV[1])
	return 1
end
return 0
`)

func dbKeyStagingList(prefix string, kind Kind) string {
	return fmt.Sprintf("%s:%s", prefix, kind)
}

func dbKeyStagingSeen(prefix string, kind Kind) string {
	return fmt.Sprintf("%s:%s:seen", prefix, kind)
}

// RedisLog stages msgpack encoded entries in one redis list per kind.
type RedisLog struct {
	cmd    redis.UniversalClient
	prefix string
}

func NewRedisLog(cmd redis.UniversalClient, prefix string) *RedisLog {
	if prefix == "" {
		prefix = "staging"
	}
	return &RedisLog{cmd: cmd, prefix: prefix}
}

func (l *RedisLog) Append(ctx context.Context, entry Entry) (bool, error) {
	b, err := msgpack.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode %s entry: %w", entry.Kind(), err)
	}

	keys := []string{dbKeyStagingList(l.prefix, entry.Kind()), dbKeyStagingSeen(l.prefix, entry.Kind())}
	added, err := appendScript.Run(ctx, l.cmd, keys, b).Int()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (l *RedisLog) Replay(ctx context.Context, applier Applier) (int, error) {
	applied := 0
	for _, kind := range Kinds {
		items, err := l.cmd.LRange(ctx, dbKeyStagingList(l.prefix, kind), 0, -1).Result()
		if err != nil {
			return applied, err
		}

		for _, item := range items {
			entry, err := newEntry(kind)
			if err != nil {
				return applied, err
			}
			if err := msgpack.Unmarshal([]byte(item), entry); err != nil {
				return applied, fmt.Errorf("decode %s entry: %w", kind, err)
			}
			if err := entry.Apply(ctx, applier); err != nil {
				return applied, fmt.Errorf("apply %s entry: %w", kind, err)
			}
			applied++
		}
	}
	return applied, nil
}

func (l *RedisLog) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(Kinds)*2)
	for _, kind := range Kinds {
		keys = append(keys, dbKeyStagingList(l.prefix, kind), dbKeyStagingSeen(l.prefix, kind))
	}
	return l.cmd.Del(ctx, keys...).Err()
}

func (l *RedisLog) Empty(ctx context.Context) (bool, error) {
	for _, kind := range Kinds {
		n, err := l.cmd.LLen(ctx, dbKeyStagingList(l.prefix, kind)).Result()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}
