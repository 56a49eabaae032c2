package articles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/newsroom/internal/cache"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/store"
	"github.com/bilgisen/newsroom/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one second on every reading
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc       *Service
	store     store.Store
	uploadDir string
}

func newFixture(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	var st store.Store = fs
	if wrap != nil {
		st = wrap(fs)
	}

	dir := t.TempDir()
	local, err := upload.NewLocal(dir)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2017, 6, 15, 8, 0, 0, 0, time.Local)}
	svc := NewService(st, local, WithClock(clock.Now), WithMaxFileSize(1024))
	return &fixture{svc: svc, store: st, uploadDir: dir}
}

func str(s string) *string { return &s }

func fileInput(name, body string) *FileInput {
	return &FileInput{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestSave_CreateThenPartialUpdate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Save(ctx, SaveInput{Title: str("A"), Desc: str("d"), Content: str("c")})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "A", created.Title)
	assert.False(t, created.CreateAt.IsZero())
	assert.True(t, created.UpdateAt.Equal(created.CreateAt.Time))
	assert.Equal(t, int64(1), created.Version)

	updated, err := f.svc.Save(ctx, SaveInput{ID: created.ID, Title: str("B")})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "B", updated.Title)
	assert.Equal(t, "d", updated.Desc, "fields absent from the update are preserved")
	assert.Equal(t, "c", updated.Content)
	assert.True(t, updated.UpdateAt.After(created.CreateAt.Time))
	assert.True(t, updated.CreateAt.Equal(created.CreateAt.Time), "createAt is set once")
	assert.Equal(t, int64(2), updated.Version)

	stored, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestSave_UndefinedIDCreates(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.svc.Save(context.Background(), SaveInput{ID: "undefined", Title: str("fresh")})
	require.NoError(t, err)
	assert.NotEqual(t, "undefined", a.ID)

	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSave_CreateRequiresTitle(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Save(context.Background(), SaveInput{Title: str("   ")})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSave_SanitizesFields(t *testing.T) {
	f := newFixture(t, nil)

	a, err := f.svc.Save(context.Background(), SaveInput{
		Title:     str("  Breaking\n news "),
		Content:   str("<p>ok</p><script>alert(1)</script>"),
		EditValue: str("<script>kept verbatim</script>"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Breaking news", a.Title)
	assert.Equal(t, "<p>ok</p>", a.Content)
	assert.Equal(t, "<script>kept verbatim</script>", a.EditValue)
}

func TestSave_UpdateMissingArticle(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Save(context.Background(), SaveInput{ID: "nope", Title: str("x")})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("v1")})
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, SaveInput{ID: a.ID, Title: str("v2"), Version: 1})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, SaveInput{ID: a.ID, Title: str("lost"), Version: 1})
	assert.Equal(t, KindConflict, KindOf(err))

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
}

func TestSave_VersionCheckIgnoresStaleCache(t *testing.T) {
	var backing store.Store
	f := newFixture(t, func(s store.Store) store.Store {
		backing = s
		return cache.NewCachedStore(s, cache.NewMemoryCache(), time.Minute)
	})
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("v1")})
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, a.ID)
	require.NoError(t, err)

	// a write the cache never heard about leaves v1 cached
	v2 := *a
	v2.Title = "v2"
	v2.Version = 2
	require.NoError(t, backing.Update(ctx, &v2, 1))

	updated, err := f.svc.Save(ctx, SaveInput{ID: a.ID, Title: str("v3"), Version: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "v3", got.Title)
}

// racingStore makes the first n updates lose against a concurrent writer
type racingStore struct {
	store.Store
	failures int
	calls    int
}

func (r *racingStore) Update(ctx context.Context, a *models.Article, expected int64) error {
	r.calls++
	if r.calls <= r.failures {
		return store.ErrVersionConflict
	}
	return r.Store.Update(ctx, a, expected)
}

func TestSave_RetriesConcurrentUpdate(t *testing.T) {
	racing := &racingStore{failures: 2}
	f := newFixture(t, func(s store.Store) store.Store {
		racing.Store = s
		return racing
	})
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("v1")})
	require.NoError(t, err)

	updated, err := f.svc.Save(ctx, SaveInput{ID: a.ID, Desc: str("new")})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Desc)
	assert.Equal(t, 3, racing.calls)
}

func TestSave_GivesUpAfterRepeatedConflicts(t *testing.T) {
	racing := &racingStore{failures: 10}
	f := newFixture(t, func(s store.Store) store.Store {
		racing.Store = s
		return racing
	})
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("v1")})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, SaveInput{ID: a.ID, Desc: str("new")})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, maxUpdateAttempts, racing.calls)
}

func TestSave_UploadSetsCover(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("with cover"), Cover: str("ignored.jpg"), File: fileInput("photo.JPG", "jpeg-bytes")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.Cover, "public/upload/"), a.Cover)
	assert.True(t, strings.HasSuffix(a.Cover, ".jpg"), a.Cover)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, filepath.Base(a.Cover)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	// update without file and without cover keeps the stored cover
	b, err := f.svc.Save(ctx, SaveInput{ID: a.ID, Title: str("renamed")})
	require.NoError(t, err)
	assert.Equal(t, a.Cover, b.Cover)

	// an explicit cover path is reused unchanged
	c, err := f.svc.Save(ctx, SaveInput{ID: a.ID, Cover: str("https://cdn.example.com/x.png")})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.png", c.Cover)
}

func TestSave_RejectsLargeFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, SaveInput{Title: str("big"), File: fileInput("a.png", strings.Repeat("x", 2048))})
	assert.Equal(t, KindValidation, KindOf(err))

	// declared size lies about the body
	lying := fileInput("a.png", strings.Repeat("x", 2048))
	lying.Size = 10
	_, err = f.svc.Save(ctx, SaveInput{Title: str("big"), File: lying})
	assert.Equal(t, KindValidation, KindOf(err))

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingInsertStore struct {
	store.Store
}

func (failingInsertStore) Insert(context.Context, *models.Article) error {
	return errors.New("disk full")
}

func TestSave_StorageFailureRemovesUpload(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store { return failingInsertStore{s} })

	_, err := f.svc.Save(context.Background(), SaveInput{Title: str("x"), File: fileInput("a.png", "png")})
	require.Error(t, err)
	assert.Equal(t, KindStorage, KindOf(err))

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "orphaned upload is removed")
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := f.svc.Save(ctx, SaveInput{Title: str(fmt.Sprintf("article %d", i))})
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPage)
	assert.Len(t, page.List, 10)
	assert.True(t, page.FirstPage)
	assert.False(t, page.LastPage)
	assert.Equal(t, 0, page.CurrentPage)
	assert.Equal(t, "article 24", page.List[0].Title)

	var all []models.Article
	for p := 1; p <= page.TotalPage; p++ {
		got, err := f.svc.List(ctx, p, 10)
		require.NoError(t, err)
		assert.Equal(t, (p-1)*10, got.CurrentPage)
		assert.Equal(t, p == 3, got.LastPage)
		all = append(all, got.List...)
	}
	require.Len(t, all, 25)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].Newer(&all[i]))
	}

	beyond, err := f.svc.List(ctx, 4, 10)
	require.NoError(t, err)
	assert.NotNil(t, beyond.List)
	assert.Empty(t, beyond.List)
	assert.True(t, beyond.LastPage)
}

func TestList_Empty(t *testing.T) {
	f := newFixture(t, nil)

	page, err := f.svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPage)
	assert.True(t, page.FirstPage)
	assert.True(t, page.LastPage)
	assert.NotNil(t, page.List)
}

func TestList_InvalidArguments(t *testing.T) {
	f := newFixture(t, nil)

	items := []struct {
		name           string
		page, pageSize int
		field          string
	}{
		{"zero page", 0, 10, "page"},
		{"zero size", 1, 0, "pageSize"},
		{"huge size", 1, 1000, "pageSize"},
		{"overflowing page", math.MaxInt/100 + 2, 100, "page"},
	}

	for _, item := range items {
		t.Run(item.name, func(t *testing.T) {
			_, err := f.svc.List(context.Background(), item.page, item.pageSize)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindValidation, e.Kind)
			assert.Contains(t, e.Fields, item.field)
		})
	}
}

func TestGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.Get(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))

	a, err := f.svc.Save(ctx, SaveInput{Title: str("x")})
	require.NoError(t, err)

	first, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	second, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Delete(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))

	ack, err := f.svc.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, models.DeleteAck{N: 0, OK: 1}, ack)

	a, err := f.svc.Save(ctx, SaveInput{Title: str("x"), File: fileInput("a.gif", "gif")})
	require.NoError(t, err)

	ack, err = f.svc.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeleteAck{N: 1, OK: 1}, ack)

	_, err = f.svc.Get(ctx, a.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

}

func TestDelete_KeepsSharedCover(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.Save(ctx, SaveInput{Title: str("A"), File: fileInput("x.jpg", "jpeg")})
	require.NoError(t, err)
	b, err := f.svc.Save(ctx, SaveInput{Title: str("B"), Cover: str(a.Cover)})
	require.NoError(t, err)
	require.Equal(t, a.Cover, b.Cover)

	ack, err := f.svc.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.N)

	data, err := os.ReadFile(filepath.Join(f.uploadDir, filepath.Base(b.Cover)))
	require.NoError(t, err, "the surviving article still points at the file")
	assert.Equal(t, "jpeg", string(data))
}
