package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DateLocker serializes booking writes for one calendar date.
type DateLocker interface {
	Lock(ctx context.Context, date string) (unlock func(), err error)
}

var ErrLockTimeout = errors.New("timed out waiting for date lock")

// LocalLocker keeps one mutex per date. It only serializes writers inside a
// single process.
type LocalLocker struct {
	mu    sync.Mutex
	dates map[string]*dateLock
}

type dateLock struct {
	ch      chan struct{}
	waiters int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{dates: map[string]*dateLock{}}
}

func (l *LocalLocker) Lock(ctx context.Context, date string) (func(), error) {
	l.mu.Lock()
	dl, ok := l.dates[date]
	if !ok {
		dl = &dateLock{ch: make(chan struct{}, 1)}
		l.dates[date] = dl
	}
	dl.waiters++
	l.mu.Unlock()

	select {
	case dl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(date, dl, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(date, dl, true) })
	}, nil
}

func (l *LocalLocker) release(date string, dl *dateLock, held bool) {
	if held {
		<-dl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	dl.waiters--
	if dl.waiters == 0 {
		delete(l.dates, date)
	}
}

// RedisLocker uses SET NX PX so several booking-service replicas share the
// lock. The release only deletes the key when the token still matches.
type RedisLocker struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	retry   time.Duration
	maxWait time.Duration
}

var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(rdb *redis.Client, prefix string, ttl, maxWait time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "booking:lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: 25 * time.Millisecond, maxWait: maxWait}
}

func (l *RedisLocker) Lock(ctx context.Context, date string) (func(), error) {
	key := l.prefix + ":" + date
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = redisUnlockScript.Run(releaseCtx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}
