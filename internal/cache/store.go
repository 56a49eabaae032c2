package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/store"
)

// CachedStore puts a read-through cache in front of Store.Get. Writes go
// to the store first and then invalidate; cache errors never fail a call.
// A fill that raced with a write is dropped again so an older read never
// outlives the invalidation.
type CachedStore struct {
	store.Store
	cache Cache
	ttl   time.Duration

	// writes counts completed Update and Delete calls
	writes atomic.Uint64
}

func NewCachedStore(s store.Store, c Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: s, cache: c, ttl: ttl}
}

func articleKey(id string) string {
	return "article:" + id
}

func (s *CachedStore) Get(ctx context.Context, id string) (*models.Article, error) {
	data, err := s.cache.Get(ctx, articleKey(id))
	if err == nil {
		var article models.Article
		if err := json.Unmarshal(data, &article); err == nil {
			return &article, nil
		}
		logger.Get().Warn().Str("id", id).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, ErrMiss) {
		logger.Get().Warn().Err(err).Str("id", id).Msg("Cache read failed")
	}

	gen := s.writes.Load()
	article, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.writes.Load() != gen {
		return article, nil
	}

	data, err = json.Marshal(article)
	if err != nil {
		return article, nil
	}
	if err := s.cache.Set(ctx, articleKey(id), data, s.ttl); err != nil {
		logger.Get().Warn().Err(err).Str("id", id).Msg("Cache write failed")
		return article, nil
	}
	// a write that finished between the check above and Set may already
	// have invalidated, so drop what was just stored
	if s.writes.Load() != gen {
		s.invalidate(ctx, id)
	}
	return article, nil
}

// Unwrap returns the store behind the cache
func (s *CachedStore) Unwrap() store.Store {
	return s.Store
}

func (s *CachedStore) Update(ctx context.Context, article *models.Article, expectedVersion int64) error {
	err := s.Store.Update(ctx, article, expectedVersion)
	s.writes.Add(1)
	s.invalidate(ctx, article.ID)
	return err
}

func (s *CachedStore) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	ack, err := s.Store.Delete(ctx, id)
	s.writes.Add(1)
	s.invalidate(ctx, id)
	return ack, err
}

func (s *CachedStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (s *CachedStore) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, articleKey(id)); err != nil {
		logger.Get().Warn().Err(err).Str("id", id).Msg("Cache invalidation failed")
	}
}
