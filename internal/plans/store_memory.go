package plans

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Subscription
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Subscription)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	s.mu.RLock()
	sub, ok := s.data[userID]
	s.mu.RUnlock()
	if ok && !sub.Expired(time.Now().UTC()) {
		return sub, nil
	}
	return s.ensure(ctx, userID)
}

func (s *memoryStore) ensure(ctx context.Context, userID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.data[userID]
	if !ok {
		sub = defaultSubscription(now)
	}
	if sub.Expired(now) {
		sub = defaultSubscription(now)
	}
	s.data[userID] = sub
	return sub, nil
}

func (s *memoryStore) Set(ctx context.Context, userID string, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = sub
	return nil
}
