package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes reconciliation of a single bill. Different bills never
// contend. The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, billID int) (func(), error)
}

// KeyedMutex is an in-process Locker with one slot per bill id
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[int]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[int]*slot)}
}

// Lock blocks until the bill's slot is free or ctx is done
func (k *KeyedMutex) Lock(ctx context.Context, billID int) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[billID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[billID] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(billID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(billID, s)
		})
	}, nil
}

func (k *KeyedMutex) release(billID int, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, billID)
	}
}

const (
	lockKeyPrefix   = "billwatch:lock:bill:"
	lockRetryStart  = 25 * time.Millisecond
	lockRetryMax    = 500 * time.Millisecond
	lockReleaseWait = 5 * time.Second
)

// Deletes the key only while it still carries our token, so an expired
// lease taken over by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by Redis leases, shared by every process
// pointed at the same Redis.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker from a redis:// URL and verifies the connection
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ttl), nil
}

// NewRedisLockerWithClient creates a locker from an existing client
func NewRedisLockerWithClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(billID int) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, billID)
}

// Lock polls SET NX with backoff until the lease is taken or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, billID int) (func(), error) {
	key := lockKey(billID)
	token := uuid.NewString()
	wait := lockRetryStart

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock for bill %d: %w", billID, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if wait < lockRetryMax {
			wait *= 2
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled here
			rctx, cancel := context.WithTimeout(context.Background(), lockReleaseWait)
			defer cancel()
			releaseScript.Run(rctx, l.client, []string{key}, token)
		})
	}, nil
}

// Close closes the Redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
