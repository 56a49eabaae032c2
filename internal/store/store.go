package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bilgisen/newsroom/internal/models"
)

var (
	ErrNotFound        = errors.New("article not found")
	ErrVersionConflict = errors.New("article was modified concurrently")
	ErrDuplicateID     = errors.New("article id already exists")
)

// Store is the document store holding article records.
// Implementations must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, article *models.Article) error
	Get(ctx context.Context, id string) (*models.Article, error)
	// Update replaces the stored article only if its version still equals
	// expectedVersion.
	Update(ctx context.Context, article *models.Article, expectedVersion int64) error
	Delete(ctx context.Context, id string) (models.DeleteAck, error)
	Count(ctx context.Context) (int64, error)
	// List returns articles ordered by most recent update first.
	List(ctx context.Context, skip, limit int) ([]models.Article, error)
	Ping(ctx context.Context) error
	Close() error
}

// Layered is implemented by stores that wrap another store, such as a cache
type Layered interface {
	Unwrap() Store
}

// Direct strips every wrapping layer so reads hit the backing store
func Direct(s Store) Store {
	for {
		l, ok := s.(Layered)
		if !ok {
			return s
		}
		s = l.Unwrap()
	}
}

// Driver names accepted by Open
const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// Options selects and configures a driver
type Options struct {
	Driver string

	// file
	Path string

	// redis
	RedisURL    string
	RedisPrefix string

	// badger
	BadgerPath string

	// mongo
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// Open connects the configured driver
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStore(opts.Path)
	case DriverRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix)
	case DriverBadger:
		return NewBadgerStore(opts.BadgerPath)
	case DriverMongo:
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase, opts.MongoCollection)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// sortNewestFirst orders articles the way List must return them
func sortNewestFirst(articles []models.Article) {
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].Newer(&articles[j])
	})
}

// window applies skip/limit to an already sorted slice
func window(articles []models.Article, skip, limit int) []models.Article {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(articles) {
		return []models.Article{}
	}
	end := len(articles)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return articles[skip:end]
}
