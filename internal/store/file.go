package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bilgisen/newsroom/internal/models"
)

// FileStore keeps one JSON document per article on disk
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.New("file store: empty storage path")
	}

	// Create articles directory if it doesn't exist
	if err := os.MkdirAll(filepath.Join(basePath, "articles"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{
		basePath: basePath,
	}, nil
}

func (s *FileStore) articlePath(id string) (string, error) {
	// ids become file names; anything that could escape the directory is rejected
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", ErrNotFound
	}
	return filepath.Join(s.basePath, "articles", id+".json"), nil
}

func (s *FileStore) read(id string) (*models.Article, error) {
	path, err := s.articlePath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var article models.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article %s: %w", id, err)
	}
	return &article, nil
}

// write replaces the document atomically via rename
func (s *FileStore) write(article *models.Article) error {
	path, err := s.articlePath(article.ID)
	if err != nil {
		return fmt.Errorf("invalid article id %q", article.ID)
	}

	data, err := json.MarshalIndent(article, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write article file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move article file: %w", err)
	}
	return nil
}

func (s *FileStore) Insert(ctx context.Context, article *models.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.read(article.ID); err == nil {
		return ErrDuplicateID
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.write(article)
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(id)
}

func (s *FileStore) Update(ctx context.Context, article *models.Article, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(article.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	return s.write(article)
}

func (s *FileStore) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	if err := ctx.Err(); err != nil {
		return models.DeleteAck{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.articlePath(id)
	if err != nil {
		return models.DeleteAck{N: 0, OK: 1}, nil
	}

	err = os.Remove(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return models.DeleteAck{N: 0, OK: 1}, nil
	case err != nil:
		return models.DeleteAck{}, fmt.Errorf("failed to delete article file: %w", err)
	}
	return models.DeleteAck{N: 1, OK: 1}, nil
}

func (s *FileStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.files()
	if err != nil {
		return 0, err
	}
	return int64(len(files)), nil
}

func (s *FileStore) List(ctx context.Context, skip, limit int) ([]models.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.files()
	if err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file %s: %w", file, err)
		}

		var article models.Article
		if err := json.Unmarshal(data, &article); err != nil {
			return nil, fmt.Errorf("error unmarshaling article %s: %w", file, err)
		}
		articles = append(articles, article)
	}

	sortNewestFirst(articles)
	return window(articles, skip, limit), nil
}

// files lists the article documents
func (s *FileStore) files() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, "articles"))
	if err != nil {
		return nil, fmt.Errorf("error reading storage directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.basePath, "articles", entry.Name()))
	}
	return files, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Join(s.basePath, "articles"))
	return err
}

func (s *FileStore) Close() error {
	return nil
}
