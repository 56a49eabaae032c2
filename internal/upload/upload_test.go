package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateName(t *testing.T) {
	now := time.UnixMilli(1497484800123)

	items := []struct {
		name     string
		original string
		suffix   string
	}{
		{"jpg", "photo.jpg", "1497484800123.jpg"},
		{"upper case ext", "PHOTO.PNG", "1497484800123.png"},
		{"no ext", "README", "1497484800123"},
		{"weird ext", "evil.j$p", "1497484800123"},
		{"path in name", "../../x.gif", "1497484800123.gif"},
	}

	for _, item := range items {
		t.Run(item.name, func(t *testing.T) {
			name := GenerateName(item.original, now)
			assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}`), name)
			assert.True(t, strings.HasSuffix(name, item.suffix), name)
			assert.Equal(t, name, filepath.Base(name))
		})
	}

	assert.NotEqual(t, GenerateName("a.jpg", now), GenerateName("a.jpg", now))
}

func TestLocal_SaveIsCompleteOnReturn(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	payload := strings.Repeat("x", 1<<20)
	ref, err := l.Save(context.Background(), "cover.jpg", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "public/upload/cover.jpg", ref)
	assert.True(t, l.Owns(ref))

	data, err := os.ReadFile(filepath.Join(dir, "cover.jpg"))
	require.NoError(t, err)
	assert.Len(t, data, len(payload))

	require.NoError(t, l.Remove(context.Background(), ref))
	_, err = os.Stat(filepath.Join(dir, "cover.jpg"))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	assert.NoError(t, l.Remove(context.Background(), ref))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestLocal_PartialFileRemoved(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	_, err = l.Save(context.Background(), "broken.png", failingReader{})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_RejectsForeignRefs(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.False(t, l.Owns("https://cdn.example.com/a.jpg"))
	assert.False(t, l.Owns("public/upload/../../etc/passwd"))
	assert.Error(t, l.Remove(context.Background(), "https://cdn.example.com/a.jpg"))

	_, err = l.Save(context.Background(), "../escape.jpg", strings.NewReader("x"))
	assert.Error(t, err)
}

// fakeS3 answers path-style PutObject/CreateBucket/DeleteObject requests
type fakeS3 struct {
	mu            sync.Mutex
	bucketExists  bool
	objects       map[string]string
	createdBucket bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	switch {
	case r.Method == http.MethodPut && len(parts) == 1:
		f.bucketExists = true
		f.createdBucket = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && !f.bucketExists:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>The specified bucket does not exist</Message></Error>`)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[parts[1]] = string(body)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, parts[1])
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3_SaveCreatesBucketOnce(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	s, err := NewS3(context.Background(), S3Config{
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "covers",
		PublicURL: "https://cdn.example.com",
		KeyPrefix: "news",
	})
	require.NoError(t, err)

	ref, err := s.Save(context.Background(), "abc1497484800123.jpg", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/news/abc1497484800123.jpg", ref)
	assert.True(t, fake.createdBucket)
	assert.Equal(t, "image-bytes", fake.objects["news/abc1497484800123.jpg"])

	assert.True(t, s.Owns(ref))
	require.NoError(t, s.Remove(context.Background(), ref))
	assert.Empty(t, fake.objects)
}
