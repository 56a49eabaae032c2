package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps article documents as JSON strings plus a sorted set
// indexing them by update time.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "article:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "articles:by_update"
}

func score(a *models.Article) float64 {
	return float64(a.UpdateAt.Unix())
}

func (s *RedisStore) Insert(ctx context.Context, article *models.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	key := s.key(article.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateID
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(article), Member: article.ID})
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return ErrDuplicateID
	case errors.Is(err, ErrDuplicateID):
		return err
	case err != nil:
		return fmt.Errorf("redis insert error: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Article, error) {
	val, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var article models.Article
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article %s: %w", id, err)
	}
	return &article, nil
}

func (s *RedisStore) Update(ctx context.Context, article *models.Article, expectedVersion int64) error {
	key := s.key(article.ID)
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var current models.Article
		if err := json.Unmarshal(val, &current); err != nil {
			return fmt.Errorf("failed to unmarshal article %s: %w", article.ID, err)
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score(article), Member: article.ID})
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return models.DeleteAck{}, fmt.Errorf("redis delete error: %w", err)
	}
	return models.DeleteAck{N: del.Val(), OK: 1}, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard error: %w", err)
	}
	return n, nil
}

func (s *RedisStore) List(ctx context.Context, skip, limit int) ([]models.Article, error) {
	if skip < 0 {
		skip = 0
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(skip + limit - 1)
	}

	// ZREVRANGE breaks score ties by descending member, which is the id order List promises
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), int64(skip), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange error: %w", err)
	}
	if len(ids) == 0 {
		return []models.Article{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget error: %w", err)
	}

	articles := make([]models.Article, 0, len(vals))
	for i, val := range vals {
		str, ok := val.(string)
		if !ok {
			// removed between ZREVRANGE and MGET
			continue
		}
		var a models.Article
		if err := json.Unmarshal([]byte(str), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal article %s: %w", ids[i], err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
