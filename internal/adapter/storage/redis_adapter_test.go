package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestAcquireGuard_Exclusive(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "approve:test-" + uuid.NewString()
	defer client.Del(ctx, guardKeyPrefix+key)

	token, ok, err := adapter.AcquireGuard(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || token == "" {
		t.Fatal("expected first acquire to succeed")
	}

	_, ok, err = adapter.AcquireGuard(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second acquire to fail while guard is held")
	}

	if err := adapter.ReleaseGuard(ctx, key, token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	_, ok, _ = adapter.AcquireGuard(ctx, key, time.Minute)
	if !ok {
		t.Error("expected acquire to succeed after release")
	}
}

func TestReleaseGuard_WrongTokenKeepsGuard(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "approve:test-" + uuid.NewString()
	defer client.Del(ctx, guardKeyPrefix+key)

	if _, ok, err := adapter.AcquireGuard(ctx, key, time.Minute); err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}

	if err := adapter.ReleaseGuard(ctx, key, "someone-else"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	exists, _ := client.Exists(ctx, guardKeyPrefix+key).Result()
	if exists != 1 {
		t.Error("guard released by a caller that does not own it")
	}
}

func TestAcquireGuard_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "approve:test-" + uuid.NewString()
	defer client.Del(ctx, guardKeyPrefix+key)

	var wg sync.WaitGroup
	var winners atomic.Int32

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := adapter.AcquireGuard(ctx, key, time.Minute); ok {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly 1 holder, got %d", winners.Load())
	}
}

func TestSetIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	key := "test-" + uuid.NewString()
	defer client.Del(ctx, idempotencyKeyPrefix+key)

	ok, err := adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first set to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second set to fail (duplicate)")
	}

	ttl, _ := client.TTL(ctx, idempotencyKeyPrefix+key).Result()
	if ttl <= 0 || ttl > idempotencyKeyTTL {
		t.Errorf("unexpected ttl %v", ttl)
	}

	if err := adapter.ReleaseIdempotency(ctx, key); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ok, _ = adapter.SetIdempotency(ctx, key)
	if !ok {
		t.Error("expected set to succeed after release")
	}
}
