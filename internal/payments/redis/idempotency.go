package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis wraps the client used for idempotency keys and per-order submit
// locks. Authoritative payment state never lives here; the database service
// owns it.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getIdempotencyTTL returns how long idempotency keys are remembered.
func (r *Redis) getIdempotencyTTL() time.Duration {
	defaultDuration := 24 * time.Hour

	ttlStr := os.Getenv("IDEMPOTENCY_TTL_HOURS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlHours, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid IDEMPOTENCY_TTL_HOURS value '" + ttlStr + "', using default 24 hours")
		return defaultDuration
	}

	return time.Duration(ttlHours) * time.Hour
}

// getOrderLockTTL returns how long an in-flight submit holds the order lock.
func (r *Redis) getOrderLockTTL() time.Duration {
	defaultDuration := 2 * time.Minute

	ttlStr := os.Getenv("ORDER_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid ORDER_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 2 minutes")
		return defaultDuration
	}

	return time.Duration(ttlSec) * time.Second
}

// ReserveIdempotencyKey records key -> recordID if the key is unseen.
// Returns the already-stored record id and false when the key was used
// before, so the caller can return the original record instead of creating a
// duplicate.
func (r *Redis) ReserveIdempotencyKey(ctx context.Context, key, recordID string) (string, bool, error) {
	redisKey := "idempotency:" + key
	ok, err := r.Client.SetNX(ctx, redisKey, recordID, r.getIdempotencyTTL()).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return recordID, true, nil
	}

	existing, err := r.Client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		// Key expired between SetNX and Get; treat as fresh
		return recordID, true, r.Client.Set(ctx, redisKey, recordID, r.getIdempotencyTTL()).Err()
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// ReleaseIdempotencyKey drops a reservation whose record was never persisted,
// so a client retry with the same key can start over instead of replaying a
// record that does not exist. Only the reservation's own record id may
// release it.
func (r *Redis) ReleaseIdempotencyKey(ctx context.Context, key, recordID string) error {
	redisKey := "idempotency:" + key
	val, err := r.Client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == recordID {
		return r.Client.Del(ctx, redisKey).Err()
	}
	return nil
}

// LockOrder takes the submit lock for an order. Returns false when another
// payment for the same order is already in flight.
func (r *Redis) LockOrder(orderID, paymentID string) (bool, error) {
	key := "order_lock:" + orderID
	ok, err := r.Client.SetNX(context.Background(), key, paymentID, r.getOrderLockTTL()).Result()
	return ok, err
}

// UnlockOrder releases the submit lock if it is still held by this payment.
func (r *Redis) UnlockOrder(orderID, paymentID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("order_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released
	}
	if err != nil {
		return err
	}
	if val == paymentID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
