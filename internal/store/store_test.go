package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2017, 6, 15, 10, 0, 0, 0, time.Local)

func newArticle(id string, updatedOffset time.Duration) *models.Article {
	return &models.Article{
		ID:       id,
		Title:    "Title " + id,
		Desc:     "desc",
		Content:  "<p>content</p>",
		CreateAt: models.NewTimestamp(base),
		UpdateAt: models.NewTimestamp(base.Add(updatedOffset)),
		Version:  1,
	}
}

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	f := map[string]storeFactory{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewRedisStoreFromClient(rdb, "test:")
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadgerStore("")
			require.NoError(t, err)
			return s
		},
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		f["mongo"] = func(t *testing.T) Store {
			coll := fmt.Sprintf("news_test_%d", time.Now().UnixNano())
			s, err := NewMongoStore(context.Background(), uri, "newsroom_test", coll)
			require.NoError(t, err)
			t.Cleanup(func() { s.coll.Drop(context.Background()) })
			return s
		}
	}
	return f
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func TestStore_InsertGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := newArticle("a1", 0)

		require.NoError(t, s.Insert(ctx, a))

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, a.Title, got.Title)
		assert.Equal(t, a.Content, got.Content)
		assert.True(t, a.CreateAt.Equal(got.CreateAt.Time))
		assert.Equal(t, int64(1), got.Version)

		assert.ErrorIs(t, s.Insert(ctx, a), ErrDuplicateID)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpdateVersionCheck(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := newArticle("a1", 0)
		require.NoError(t, s.Insert(ctx, a))

		updated := *a
		updated.Title = "changed"
		updated.Version = 2
		require.NoError(t, s.Update(ctx, &updated, 1))

		stale := *a
		stale.Title = "stale"
		stale.Version = 2
		assert.ErrorIs(t, s.Update(ctx, &stale, 1), ErrVersionConflict)

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "changed", got.Title)

		ghost := newArticle("ghost", 0)
		assert.ErrorIs(t, s.Update(ctx, ghost, 1), ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newArticle("a1", 0)))

		ack, err := s.Delete(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteAck{N: 1, OK: 1}, ack)

		ack, err = s.Delete(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, models.DeleteAck{N: 0, OK: 1}, ack)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStore_ListOrderAndWindow(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 25; i++ {
			// every third article shares its update second with a neighbour
			offset := time.Duration(i-i%3) * time.Minute
			require.NoError(t, s.Insert(ctx, newArticle(fmt.Sprintf("id-%02d", i), offset)))
		}

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(25), n)

		var all []models.Article
		for skip := 0; skip < 25; skip += 10 {
			page, err := s.List(ctx, skip, 10)
			require.NoError(t, err)
			all = append(all, page...)
		}
		require.Len(t, all, 25)

		seen := map[string]bool{}
		for i, a := range all {
			assert.False(t, seen[a.ID], "duplicate %s", a.ID)
			seen[a.ID] = true
			if i > 0 {
				assert.True(t, all[i-1].Newer(&all[i]), "%s should sort before %s", all[i-1].ID, a.ID)
			}
		}

		empty, err := s.List(ctx, 30, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_UpdateMovesArticleToFront(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, newArticle("old", 0)))
		require.NoError(t, s.Insert(ctx, newArticle("new", time.Minute)))

		old, err := s.Get(ctx, "old")
		require.NoError(t, err)
		old.UpdateAt = models.NewTimestamp(base.Add(time.Hour))
		old.Version = 2
		require.NoError(t, s.Update(ctx, old, 1))

		list, err := s.List(ctx, 0, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "old", list[0].ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "cassandra"})
	assert.Error(t, err)
}

func TestRedisStore_InsertWritesDocumentAndIndexTogether(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newArticle("a1", 0)))
	assert.True(t, mr.Exists("test:article:a1"))
	members, err := mr.ZMembers("test:articles:by_update")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, members)

	assert.ErrorIs(t, s.Insert(ctx, newArticle("a1", time.Hour)), ErrDuplicateID)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_CanceledContext(t *testing.T) {
	embedded := map[string]storeFactory{}
	for name, factory := range factories() {
		if name == "file" || name == "badger" {
			embedded[name] = factory
		}
	}

	for name, factory := range embedded {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			require.NoError(t, s.Insert(context.Background(), newArticle("a1", 0)))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			assert.ErrorIs(t, s.Insert(ctx, newArticle("a2", 0)), context.Canceled)
			_, err := s.Get(ctx, "a1")
			assert.ErrorIs(t, err, context.Canceled)
			assert.ErrorIs(t, s.Update(ctx, newArticle("a1", time.Hour), 1), context.Canceled)
			_, err = s.Delete(ctx, "a1")
			assert.ErrorIs(t, err, context.Canceled)
			_, err = s.Count(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			_, err = s.List(ctx, 0, 10)
			assert.ErrorIs(t, err, context.Canceled)

			got, err := s.Get(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Version, "nothing was written")
		})
	}
}
