package memory

import (
	"context"
	"sync"
	"time"
)

// NoveltyStore keeps recently served question text in process memory with a
// sliding retention window. Used when redis is not configured.
type NoveltyStore struct {
	window time.Duration
	clock  func() time.Time

	mu   sync.Mutex
	seen map[string]map[string]time.Time
}

func NewNoveltyStore(window time.Duration) *NoveltyStore {
	return &NoveltyStore{
		window: window,
		clock:  time.Now,
		seen:   make(map[string]map[string]time.Time),
	}
}

// NewNoveltyStoreWithClock is test-only for deterministic expiry.
func NewNoveltyStoreWithClock(window time.Duration, clock func() time.Time) *NoveltyStore {
	s := NewNoveltyStore(window)
	s.clock = clock
	return s
}

func (s *NoveltyStore) Seen(_ context.Context, topic, country, normalized string) bool {
	now := s.clock()
	key := bucketKey(topic, country)

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.seen[key]
	if !ok {
		return false
	}
	at, ok := bucket[normalized]
	if !ok {
		return false
	}
	if now.Sub(at) > s.window {
		delete(bucket, normalized)
		return false
	}
	return true
}

func (s *NoveltyStore) Remember(_ context.Context, topic, country string, normalized []string) {
	now := s.clock()
	key := bucketKey(topic, country)

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.seen[key]
	if !ok {
		bucket = make(map[string]time.Time)
		s.seen[key] = bucket
	}
	for _, n := range normalized {
		bucket[n] = now
	}
	// Opportunistic sweep keeps long-lived buckets bounded.
	for n, at := range bucket {
		if now.Sub(at) > s.window {
			delete(bucket, n)
		}
	}
}

func bucketKey(topic, country string) string {
	return topic + "|" + country
}
