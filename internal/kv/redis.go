package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server, for register servers that keep
// device state off the terminal. Keys are namespaced per cash register so
// two devices never share a queue.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redisURL and namespaces every key under
// "itongpos:<namespace>:".
func NewRedis(redisURL, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Redis{client: client, prefix: "itongpos:" + namespace + ":"}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store. Values never expire.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

const leaseKey = "owner"

// ErrLeaseHeld is returned when another process owns the namespace.
var ErrLeaseHeld = errors.New("namespace is leased by another process")

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lease claims the namespace for owner. The claim lapses after ttl unless
// renewed, so a crashed register frees its namespace on its own.
func (r *Redis) Lease(ctx context.Context, owner string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.prefix+leaseKey, owner, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to lease namespace: %w", err)
	}
	if !ok {
		return ErrLeaseHeld
	}
	return nil
}

// Renew extends a lease held by owner. It returns ErrLeaseHeld when the lease
// lapsed and someone else took it.
func (r *Redis) Renew(ctx context.Context, owner string, ttl time.Duration) error {
	n, err := renewScript.Run(ctx, r.client, []string{r.prefix + leaseKey}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release drops the lease if owner still holds it.
func (r *Redis) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + leaseKey}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
