// Package articles implements the article operations behind the admin API:
// create/update with optional cover upload, paginated listing, fetch and delete.
package articles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/sanitize"
	"github.com/bilgisen/newsroom/internal/store"
	"github.com/bilgisen/newsroom/internal/upload"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UndefinedID is the id value an unsaved editor form submits
const UndefinedID = "undefined"

const maxUpdateAttempts = 3

// FileInput is an uploaded cover image
type FileInput struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// SaveInput carries the fields of a save request. Nil text fields were not
// submitted and keep their stored value on update.
type SaveInput struct {
	ID        string
	Title     *string
	Desc      *string
	Content   *string
	EditValue *string
	Cover     *string
	// Version, when non-zero, must match the stored version for an update to apply
	Version int64
	File    *FileInput
}

type Service struct {
	store       store.Store
	uploads     upload.Storage
	now         func() time.Time
	maxFileSize int64
	validate    *validator.Validate
	log         zerolog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxFileSize rejects cover uploads larger than n bytes
func WithMaxFileSize(n int64) Option {
	return func(s *Service) { s.maxFileSize = n }
}

func NewService(st store.Store, uploads upload.Storage, opts ...Option) *Service {
	s := &Service{
		store:    st,
		uploads:  uploads,
		now:      time.Now,
		validate: validator.New(),
		log:      logger.With("articles"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fieldSet is the subset of article fields a save writes
type fieldSet struct {
	title, desc, content, editValue, cover *string
}

func newFieldSet(in SaveInput, cover *string) fieldSet {
	f := fieldSet{editValue: in.EditValue, cover: cover}
	if in.Title != nil {
		v := sanitize.Text(*in.Title)
		f.title = &v
	}
	if in.Desc != nil {
		v := sanitize.Text(*in.Desc)
		f.desc = &v
	}
	if in.Content != nil {
		v := sanitize.HTML(*in.Content)
		f.content = &v
	}
	return f
}

// apply is a shallow overwrite: fields absent from the set are preserved
func (f fieldSet) apply(a *models.Article) {
	if f.title != nil {
		a.Title = *f.title
	}
	if f.desc != nil {
		a.Desc = *f.desc
	}
	if f.content != nil {
		a.Content = *f.content
	}
	if f.editValue != nil {
		a.EditValue = *f.editValue
	}
	if f.cover != nil {
		a.Cover = *f.cover
	}
}

// Save creates an article when in.ID is empty or "undefined", and updates
// the existing article otherwise. A cover upload is fully stored before
// the article is written, and removed again if the write fails.
func (s *Service) Save(ctx context.Context, in SaveInput) (*models.Article, error) {
	id := strings.TrimSpace(in.ID)
	isUpdate := id != "" && id != UndefinedID

	if !isUpdate && (in.Title == nil || sanitize.Text(*in.Title) == "") {
		return nil, validationError("title is required", map[string]string{"title": "required"})
	}
	if in.File != nil && s.maxFileSize > 0 && in.File.Size > s.maxFileSize {
		return nil, validationError(
			fmt.Sprintf("file exceeds %d bytes", s.maxFileSize),
			map[string]string{"file": "max"},
		)
	}

	var cover *string
	if in.Cover != nil && *in.Cover != "" {
		cover = in.Cover
	}

	var stored string
	if in.File != nil {
		ref, err := s.storeFile(ctx, in.File)
		if err != nil {
			return nil, err
		}
		stored = ref
		cover = &stored
	}

	fields := newFieldSet(in, cover)
	now := models.NewTimestamp(s.now())

	var (
		article *models.Article
		err     error
	)
	if isUpdate {
		article, err = s.update(ctx, id, in.Version, fields, now)
	} else {
		article, err = s.create(ctx, fields, now)
	}

	if err != nil && stored != "" {
		if rmErr := s.uploads.Remove(context.WithoutCancel(ctx), stored); rmErr != nil {
			s.log.Error().Err(rmErr).Str("cover", stored).Msg("Failed to remove orphaned upload")
		}
	}
	return article, err
}

func (s *Service) storeFile(ctx context.Context, file *FileInput) (string, error) {
	if s.uploads == nil {
		return "", &Error{Kind: KindUpload, Msg: "uploads are not configured"}
	}

	src, err := file.Open()
	if err != nil {
		return "", &Error{Kind: KindUpload, Msg: "failed to open uploaded file", Err: err}
	}
	defer src.Close()

	var r io.Reader = src
	if s.maxFileSize > 0 {
		// the declared Size may understate the body
		r = &capReader{r: src, max: s.maxFileSize}
	}

	name := upload.GenerateName(file.Name, s.now())
	ref, err := s.uploads.Save(ctx, name, r)
	if errors.Is(err, errFileTooLarge) {
		return "", validationError(fmt.Sprintf("file exceeds %d bytes", s.maxFileSize), map[string]string{"file": "max"})
	}
	if err != nil {
		return "", &Error{Kind: KindUpload, Msg: "failed to store uploaded file", Err: err}
	}

	s.log.Info().Str("cover", ref).Str("original", file.Name).Msg("Stored cover upload")
	return ref, nil
}

var errFileTooLarge = errors.New("file too large")

type capReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, errFileTooLarge
	}
	return n, err
}

func (s *Service) create(ctx context.Context, fields fieldSet, now models.Timestamp) (*models.Article, error) {
	article := &models.Article{
		ID:       uuid.NewString(),
		CreateAt: now,
		UpdateAt: now,
		Version:  1,
	}
	fields.apply(article)

	if err := s.store.Insert(ctx, article); err != nil {
		return nil, storageError("failed to create article", err)
	}

	s.log.Info().Str("id", article.ID).Msg("Article created")
	return article, nil
}

func (s *Service) update(ctx context.Context, id string, version int64, fields fieldSet, now models.Timestamp) (*models.Article, error) {
	// the version check must see the stored document, not a cached copy
	direct := store.Direct(s.store)

	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := direct.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		if err != nil {
			return nil, storageError("failed to load article", err)
		}
		if version != 0 && current.Version != version {
			return nil, conflict(id, store.ErrVersionConflict)
		}

		next := *current
		fields.apply(&next)
		next.UpdateAt = now
		next.Version = current.Version + 1

		err = s.store.Update(ctx, &next, current.Version)
		switch {
		case err == nil:
			s.log.Info().Str("id", id).Int64("version", next.Version).Msg("Article updated")
			return &next, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, notFound(id)
		case errors.Is(err, store.ErrVersionConflict):
			if version != 0 {
				return nil, conflict(id, err)
			}
			lastErr = err
			s.log.Warn().Str("id", id).Int("attempt", attempt+1).Msg("Concurrent update, retrying")
		default:
			return nil, storageError("failed to update article", err)
		}
	}
	return nil, conflict(id, lastErr)
}

type listQuery struct {
	Page     int `validate:"min=1"`
	PageSize int `validate:"min=1,max=100"`
}

// List returns one page of articles, most recently updated first
func (s *Service) List(ctx context.Context, page, pageSize int) (*models.ArticlePage, error) {
	if err := s.validate.Struct(listQuery{Page: page, PageSize: pageSize}); err != nil {
		return nil, validationError("invalid pagination", fieldErrors(err))
	}
	if page-1 > math.MaxInt/pageSize {
		return nil, validationError("page is out of range", map[string]string{"page": "max"})
	}

	skip := (page - 1) * pageSize

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, storageError("failed to count articles", err)
	}

	list, err := s.store.List(ctx, skip, pageSize)
	if err != nil {
		return nil, storageError("failed to list articles", err)
	}
	if list == nil {
		list = []models.Article{}
	}

	totalPage := int(math.Ceil(float64(total) / float64(pageSize)))

	return &models.ArticlePage{
		Page:        page,
		FirstPage:   page == 1,
		LastPage:    page >= totalPage,
		PageSize:    pageSize,
		CurrentPage: skip,
		TotalPage:   totalPage,
		List:        list,
	}, nil
}

// Get fetches one article by id
func (s *Service) Get(ctx context.Context, id string) (*models.Article, error) {
	if id == "" {
		return nil, validationError("id is required", map[string]string{"id": "required"})
	}

	article, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageError("failed to load article", err)
	}
	return article, nil
}

// Delete removes an article. Deleting an unknown id succeeds with N == 0.
// The cover file is left in place: saves may reuse one path across articles.
func (s *Service) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	if id == "" {
		return models.DeleteAck{}, validationError("id is required", map[string]string{"id": "required"})
	}

	ack, err := s.store.Delete(ctx, id)
	if err != nil {
		return models.DeleteAck{}, storageError("failed to delete article", err)
	}

	s.log.Info().Str("id", id).Int64("n", ack.N).Msg("Article deleted")
	return ack, nil
}

// Ping checks the document store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[lowerFirst(fe.Field())] = fe.Tag()
		}
	}
	return fields
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
