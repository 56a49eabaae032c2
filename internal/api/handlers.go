package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/newsroom/internal/articles"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/middleware"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// Service is the article backend the handlers call
type Service interface {
	Save(ctx context.Context, in articles.SaveInput) (*models.Article, error)
	List(ctx context.Context, page, pageSize int) (*models.ArticlePage, error)
	Get(ctx context.Context, id string) (*models.Article, error)
	Delete(ctx context.Context, id string) (models.DeleteAck, error)
	Ping(ctx context.Context) error
}

type Handlers struct {
	articles Service
}

func NewHandlers(svc Service) *Handlers {
	return &Handlers{articles: svc}
}

// ListQuery is the query string of the list endpoint
type ListQuery struct {
	Page     int `query:"page" validate:"min=1"`
	PageSize int `query:"pageSize" validate:"min=1,max=100"`
}

func (q *ListQuery) Defaults() {
	q.Page = 1
	q.PageSize = 10
}

// HealthCheck handles GET /api/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	if err := h.articles.Ping(c.UserContext()); err != nil {
		logger.Get().Error().Err(err).Msg("Store ping failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{
			Code: models.CodeStorage,
			Data: fiber.Map{"status": "unavailable"},
			Msg:  "store unavailable",
		})
	}

	return c.JSON(models.Envelope{
		Code: models.CodeSuccess,
		Data: fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		},
		Msg: "ok",
	})
}

// SaveNews handles POST /api/news/save
func (h *Handlers) SaveNews(c *fiber.Ctx) error {
	form, err := readForm(c)
	if err != nil {
		return respondError(c, &articles.Error{Kind: articles.KindValidation, Msg: "invalid form body", Err: err})
	}

	in := articles.SaveInput{
		ID:        form.value("id"),
		Title:     form.ptr("title"),
		Desc:      form.ptr("desc"),
		Content:   form.ptr("content"),
		EditValue: form.ptr("editValue"),
		Cover:     form.ptr("cover"),
	}
	if v := form.value("version"); v != "" {
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil || version < 0 {
			return respondError(c, &articles.Error{
				Kind:   articles.KindValidation,
				Msg:    "invalid version",
				Fields: map[string]string{"version": "numeric"},
			})
		}
		in.Version = version
	}
	if form.file != nil {
		fh := form.file
		in.File = &articles.FileInput{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	isUpdate := in.ID != "" && in.ID != articles.UndefinedID
	article, err := h.articles.Save(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	msg := "created"
	if isUpdate {
		msg = "updated"
	}
	return c.JSON(models.Envelope{Code: models.CodeSuccess, Data: article, Msg: msg})
}

// ListNews handles GET /api/news/list
func (h *Handlers) ListNews(c *fiber.Ctx) error {
	q := middleware.Query[ListQuery](c)
	if q == nil {
		q = &ListQuery{}
		q.Defaults()
	}

	page, err := h.articles.List(c.UserContext(), q.Page, q.PageSize)
	if err != nil {
		logger.Get().Error().Err(err).Int("page", q.Page).Msg("Error listing articles")
		return respondError(c, err)
	}

	return c.JSON(models.Envelope{Code: models.CodeSuccess, Data: page, Msg: "fetched"})
}

// GetNews handles GET /api/news/one
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	id := c.Query("id")

	article, err := h.articles.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	body, err := json.Marshal(models.Envelope{Code: models.CodeSuccess, Data: article, Msg: "fetched"})
	if err != nil {
		return respondError(c, err)
	}

	etag := utils.ETag(body)
	c.Set(fiber.HeaderETag, etag)
	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && match == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

type deleteRequest struct {
	ID string `json:"id" form:"id"`
}

// DeleteNews handles POST /api/news/delete
func (h *Handlers) DeleteNews(c *fiber.Ctx) error {
	var req deleteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, &articles.Error{Kind: articles.KindValidation, Msg: "invalid request body", Err: err})
		}
	}

	ack, err := h.articles.Delete(c.UserContext(), req.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.Envelope{Code: models.CodeSuccess, Data: []models.DeleteAck{ack}, Msg: "deleted"})
}

// respondError maps a service error onto the envelope code and HTTP status
func respondError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, models.CodeInternal
	msg := "internal error"
	var data any

	var e *articles.Error
	if errors.As(err, &e) {
		msg = e.Msg
		switch e.Kind {
		case articles.KindValidation:
			status, code = fiber.StatusBadRequest, models.CodeValidation
			if len(e.Fields) > 0 {
				data = e.Fields
			}
		case articles.KindNotFound:
			status, code = fiber.StatusNotFound, models.CodeNotFound
		case articles.KindConflict:
			status, code = fiber.StatusConflict, models.CodeConflict
		case articles.KindStorage:
			status, code = fiber.StatusServiceUnavailable, models.CodeStorage
		case articles.KindUpload:
			status, code = fiber.StatusInternalServerError, models.CodeUpload
		default:
			msg = "internal error"
		}
	}

	event := logger.Get().Warn()
	if status >= fiber.StatusInternalServerError {
		event = logger.Get().Error()
	}
	event.Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("code", code).
		Msg("Request failed")

	return c.Status(status).JSON(models.Envelope{Code: code, Data: data, Msg: msg})
}

// formBody holds the submitted save fields and the optional cover file
type formBody struct {
	values map[string][]string
	file   *multipart.FileHeader
}

func (f formBody) ptr(name string) *string {
	vs, ok := f.values[name]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

func (f formBody) value(name string) string {
	if v := f.ptr(name); v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

// readForm accepts multipart/form-data and application/x-www-form-urlencoded
// bodies and keeps track of which fields were submitted.
func readForm(c *fiber.Ctx) (formBody, error) {
	body := formBody{values: make(map[string][]string)}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return body, err
		}
		for k, v := range form.Value {
			body.values[k] = v
		}
		if files := form.File["file"]; len(files) > 0 {
			body.file = files[0]
		}
		return body, nil
	}

	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		body.values[key] = append(body.values[key], string(v))
	})
	return body, nil
}
