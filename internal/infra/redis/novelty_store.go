package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NoveltyStore tracks recently served question text in redis so the window
// survives restarts and is shared across processes. One key per question
// with the window as TTL gives exact per-entry expiry.
type NoveltyStore struct {
	client *redis.Client
	window time.Duration
	log    *slog.Logger
}

func NewNoveltyStore(client *redis.Client, window time.Duration, log *slog.Logger) *NoveltyStore {
	return &NoveltyStore{client: client, window: window, log: log}
}

// Seen is best-effort: redis trouble reads as "not seen" so question
// acquisition never fails on the novelty window.
func (s *NoveltyStore) Seen(ctx context.Context, topic, country, normalized string) bool {
	n, err := s.client.Exists(ctx, s.key(topic, country, normalized)).Result()
	if err != nil {
		s.log.Warn("novelty lookup failed", "err", err)
		return false
	}
	return n > 0
}

func (s *NoveltyStore) Remember(ctx context.Context, topic, country string, normalized []string) {
	if len(normalized) == 0 {
		return
	}
	pipe := s.client.Pipeline()
	for _, n := range normalized {
		pipe.Set(ctx, s.key(topic, country, n), "1", s.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("novelty remember failed", "err", err)
	}
}

func (s *NoveltyStore) key(topic, country, normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "novelty:" + topic + ":" + country + ":" + hex.EncodeToString(sum[:16])
}
