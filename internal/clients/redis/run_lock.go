package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
	"github.com/yungbote/wayfarer-backend/internal/training"
)

const (
	defaultLockKey = "wayfarer:training:lock"
	defaultLockTTL = 2 * time.Minute
)

// releaseScript and refreshScript only touch the key while it still holds our token.
var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

type LockConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// RunLock is a cross-process training lock. The lease is refreshed while held,
// so a crashed holder frees the lock after TTL.
type RunLock struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
	ttl time.Duration
}

var _ training.Locker = (*RunLock)(nil)

func NewRunLock(log *logger.Logger, cfg LockConfig) (*RunLock, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = defaultLockKey
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RunLock{
		log: log.With("service", "RedisRunLock"),
		rdb: rdb,
		key: key,
		ttl: ttl,
	}, nil
}

// TryAcquire takes the lock with SET NX. The returned context is canceled
// if the key stops holding our token, or cannot be refreshed before it expires.
func (l *RunLock) TryAcquire(ctx context.Context) (context.Context, func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("redis lock %s: %w", l.key, training.ErrLockBusy)
	}

	held, release := training.HoldLease(ctx, l.log.With("key", l.key), l.ttl,
		func(rctx context.Context) (bool, error) {
			n, err := refreshScript.Run(rctx, l.rdb, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				return false, err
			}
			return n == 1, nil
		},
		func(rctx context.Context) {
			if err := releaseScript.Run(rctx, l.rdb, []string{l.key}, token).Err(); err != nil {
				l.log.Warn("redis lock release failed", "key", l.key, "error", err)
			}
		})
	return held, release, nil
}

func (l *RunLock) Close() error {
	return l.rdb.Close()
}
