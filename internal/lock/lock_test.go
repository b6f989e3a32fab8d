package lock

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestSlotKey(t *testing.T) {
	if got := SlotKey("d1", "2025-08-22", "08:30"); got != "slot:d1:2025-08-22:08:30" {
		t.Fatalf("unexpected key %q", got)
	}
}

func exerciseFailFast(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.WithLock(ctx, "k", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	start := time.Now()
	err := l.WithLock(ctx, "k", func(context.Context) error { return nil })
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("lock attempt should fail fast")
	}

	if err := l.WithLock(ctx, "other", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("different key should not be blocked: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder returned %v", err)
	}

	if err := l.WithLock(ctx, "k", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("key should be free after release: %v", err)
	}
}

func TestMemoryLocker_FailFast(t *testing.T) {
	exerciseFailFast(t, NewMemoryLocker())
}

func TestMemoryLocker_PropagatesError(t *testing.T) {
	l := NewMemoryLocker()
	boom := errors.New("boom")
	if err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := l.WithLock(context.Background(), "k", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("key should be released after an error: %v", err)
	}
}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithLock(context.Background(), "k", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				if n > atomic.LoadInt32(&maxInside) {
					atomic.StoreInt32(&maxInside, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewMemoryLocker().WithLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected context.Canceled without running fn, got %v", err)
	}
}

// redisClient connects to LOCK_TEST_REDIS_ADDR (e.g. 127.0.0.1:6379) or skips.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("LOCK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOCK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

func TestRedisLocker_FailFast(t *testing.T) {
	client := redisClient(t)
	exerciseFailFast(t, NewRedisLocker(client, 5*time.Second, zerolog.Nop()))
}

func TestRedisLocker_LogsLostLock(t *testing.T) {
	client := redisClient(t)
	var buf bytes.Buffer
	l := NewRedisLocker(client, 5*time.Second, zerolog.New(&buf))

	key := "lost-" + time.Now().Format("150405.000000000")
	err := l.WithLock(context.Background(), key, func(ctx context.Context) error {
		// Simulate expiry while the section is still running.
		return client.Del(ctx, "lock:"+key).Err()
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if !strings.Contains(buf.String(), "lock expired before release") {
		t.Fatalf("expected a warning about the lost lock, got %q", buf.String())
	}

	buf.Reset()
	if err := l.WithLock(context.Background(), key, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("clean release should not log, got %q", buf.String())
	}
}
