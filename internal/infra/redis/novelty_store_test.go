package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestNoveltyStoreRemembersWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewNoveltyStore(client, 14*24*time.Hour, testLog())

	store.Remember(ctx, "space", "IE", []string{"what is a quasar", "how far is the moon"})

	if !store.Seen(ctx, "space", "IE", "what is a quasar") {
		t.Fatalf("expected remembered question to be seen")
	}
	if store.Seen(ctx, "space", "GB", "what is a quasar") {
		t.Fatalf("window is scoped per topic and country")
	}

	mr.FastForward(15 * 24 * time.Hour)
	if store.Seen(ctx, "space", "IE", "what is a quasar") {
		t.Fatalf("entries must expire with the window")
	}
}

func TestNoveltyStoreFailsOpen(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewNoveltyStore(client, time.Hour, testLog())

	mr.Close()
	if store.Seen(ctx, "space", "IE", "anything") {
		t.Fatalf("backend trouble must read as not seen")
	}
	// Remember must not panic either.
	store.Remember(ctx, "space", "IE", []string{"anything"})
}

func TestRateLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	limiter := NewRateLimiter(client, 3, time.Minute, testLog())

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if limiter.Allow(ctx, "1.2.3.4") {
		t.Fatalf("request over the limit should be rejected")
	}
	if !limiter.Allow(ctx, "5.6.7.8") {
		t.Fatalf("limits are per origin")
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	limiter := NewRateLimiter(client, 1, time.Minute, testLog())

	mr.Close()
	if !limiter.Allow(ctx, "1.2.3.4") {
		t.Fatalf("redis trouble must not block requests")
	}
}
