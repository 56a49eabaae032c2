package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/dgraph-io/badger/v4"
)

var badgerPrefix = []byte("article:")

// BadgerStore is an embedded store for single-node deployments
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the database at path. An empty path runs in memory.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(id string) []byte {
	return append(append([]byte{}, badgerPrefix...), id...)
}

func getArticle(txn *badger.Txn, id string) (*models.Article, error) {
	item, err := txn.Get(badgerKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article models.Article
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &article)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode article %s: %w", id, err)
	}
	return &article, nil
}

func (s *BadgerStore) Insert(ctx context.Context, article *models.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := getArticle(txn, article.ID); err == nil {
			return ErrDuplicateID
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return txn.Set(badgerKey(article.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrDuplicateID
	}
	return err
}

func (s *BadgerStore) Get(ctx context.Context, id string) (*models.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var article *models.Article
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		article, err = getArticle(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (s *BadgerStore) Update(ctx context.Context, article *models.Article, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		current, err := getArticle(txn, article.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}
		return txn.Set(badgerKey(article.ID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrVersionConflict
	}
	return err
}

func (s *BadgerStore) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	if err := ctx.Err(); err != nil {
		return models.DeleteAck{}, err
	}
	var ack models.DeleteAck
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			ack = models.DeleteAck{N: 0, OK: 1}
			return nil
		} else if err != nil {
			return err
		}
		if err := txn.Delete(badgerKey(id)); err != nil {
			return err
		}
		ack = models.DeleteAck{N: 1, OK: 1}
		return nil
	})
	if err != nil {
		return models.DeleteAck{}, fmt.Errorf("badger delete error: %w", err)
	}
	return ack, nil
}

func (s *BadgerStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *BadgerStore) List(ctx context.Context, skip, limit int) ([]models.Article, error) {
	var articles []models.Article
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a models.Article
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			articles = append(articles, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(articles)
	return window(articles, skip, limit), nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
