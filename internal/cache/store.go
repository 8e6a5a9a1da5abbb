package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"newsfeed/internal/domain"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry - сохраненный результат обновления и момент, когда он был получен.
type Entry struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Articles  []domain.Article `json:"articles"`
}

// Store хранит записи кэша. retention задает, сколько запись хранится физически;
// свежесть записи ResultCache определяет сам по FetchedAt.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, retention time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore - хранилище в памяти процесса, защищенное мьютексом.
// Просроченные записи удаляются при чтении и при каждой записи.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if !item.expiresAt.IsZero() && s.now().After(item.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, retention time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, item := range s.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			delete(s.items, k)
		}
	}
	item := memoryItem{entry: entry}
	if retention > 0 {
		item.expiresAt = now.Add(retention)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len возвращает число хранимых записей.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

const redisKeyPrefix = "newsfeed:cache:"

// RedisStore хранит записи в Redis в виде JSON, что позволяет нескольким
// экземплярам сервиса делить один кэш.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}
	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, retention time.Duration) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, redisKey(key), b, retention).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}
