package locksvc

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
)

const (
	keyPrefix    = "capstone:autoassign:"
	retryDelay   = 100 * time.Millisecond
	releaseAfter = 5 * time.Second

	// defaultTTL bounds how long a crashed holder blocks its batch.
	// A live holder extends the lease every ttl/3, so a run may last longer than ttl.
	defaultTTL = 30 * time.Second
)

// only delete the key if we still own it
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// only extend the key if we still own it
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisClient is the subset of *redis.Client used by RedisLocker.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker serializes batches across API instances sharing a Redis server.
// The lease is extended while the lock is held and expires after ttl if its holder dies.
type RedisLocker struct {
	client RedisClient
	ttl    time.Duration
	logger core.Logger
}

var _ group.BatchLocker = (*RedisLocker)(nil)

func NewRedisLocker(client RedisClient, ttl time.Duration, logger core.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// NewRedisClient connects to the configured Redis server.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// Lock polls until the lock is acquired. It gives up with group.ErrConcurrentAssignment
// once the lock has been held by someone else for a whole ttl, or when ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, batchID string) (func(), error) {
	key := keyPrefix + batchID
	token := uuid.New().String()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "acquiring redis lock")
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(key, token, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					l.unlock(key, token)
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, group.ErrConcurrentAssignment.WithMessage("another auto-assignment is running for this batch")
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "waiting for batch lock")
		}
	}
}

// keepAlive extends the lease every ttl/3 until stop is closed or the lock is lost.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), releaseAfter)
			n, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				l.logger.Error("extending batch lock", err, map[string]interface{}{"key": key})
			case n == 0:
				l.logger.Warn("batch lock lost", map[string]interface{}{"key": key})
				return
			}
		}
	}
}

func (l *RedisLocker) unlock(key, token string) {
	// the request context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), releaseAfter)
	defer cancel()
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Error("releasing batch lock", err, map[string]interface{}{"key": key})
	}
}
