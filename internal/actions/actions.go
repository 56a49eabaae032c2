// Package actions maps the article admin operations onto API calls and
// commits their results to a Store.
package actions

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bilgisen/newsroom/internal/client"
	"github.com/bilgisen/newsroom/internal/models"
)

// API paths
const (
	PathSave   = "/api/news/save"
	PathList   = "/api/news/list"
	PathOne    = "/api/news/one"
	PathDelete = "/api/news/delete"
)

// API is the request wrapper the actions call
type API interface {
	Get(ctx context.Context, req client.Request) (*models.RawEnvelope, error)
	Post(ctx context.Context, req client.Request) (*models.RawEnvelope, error)
	Upload(ctx context.Context, req client.Request) (*models.RawEnvelope, error)
}

// SaveParams are the editor fields of a save. Nil fields are not sent and
// keep their stored value on update.
type SaveParams struct {
	ID        string
	Title     *string
	Desc      *string
	Content   *string
	EditValue *string
	Cover     *string
	Version   int64
	File      *client.File
}

func (p SaveParams) form() map[string]string {
	params := make(map[string]string)
	if p.ID != "" {
		params["id"] = p.ID
	}
	set := func(key string, v *string) {
		if v != nil {
			params[key] = *v
		}
	}
	set("title", p.Title)
	set("desc", p.Desc)
	set("content", p.Content)
	set("editValue", p.EditValue)
	set("cover", p.Cover)
	if p.Version > 0 {
		params["version"] = strconv.FormatInt(p.Version, 10)
	}
	return params
}

type Articles struct {
	api   API
	store *Store
}

func New(api API, store *Store) *Articles {
	return &Articles{api: api, store: store}
}

// Save uploads the article fields and optional cover. It commits nothing.
func (a *Articles) Save(ctx context.Context, p SaveParams) (*models.Article, error) {
	req := client.Request{Path: PathSave, Params: p.form()}
	if p.File != nil {
		req.Files = []client.File{*p.File}
	}

	env, err := a.api.Upload(ctx, req)
	if err != nil {
		return nil, err
	}

	var article models.Article
	if err := env.DecodeData(&article); err != nil {
		return nil, fmt.Errorf("decode saved article: %w", err)
	}
	return &article, nil
}

// FetchList loads one page and commits ListFetched
func (a *Articles) FetchList(ctx context.Context, page, pageSize int) (*models.ArticlePage, error) {
	env, err := a.api.Get(ctx, client.Request{
		Path: PathList,
		Params: map[string]string{
			"page":     strconv.Itoa(page),
			"pageSize": strconv.Itoa(pageSize),
		},
	})
	if err != nil {
		return nil, err
	}

	var result models.ArticlePage
	if err := env.DecodeData(&result); err != nil {
		return nil, fmt.Errorf("decode article page: %w", err)
	}

	a.store.Dispatch(ListFetched{Page: &result})
	return &result, nil
}

// FetchOne loads an article, commits OneFetched and returns it
func (a *Articles) FetchOne(ctx context.Context, id string) (*models.Article, error) {
	env, err := a.api.Get(ctx, client.Request{Path: PathOne, Params: map[string]string{"id": id}})
	if err != nil {
		return nil, err
	}

	var article models.Article
	if err := env.DecodeData(&article); err != nil {
		return nil, fmt.Errorf("decode article: %w", err)
	}

	a.store.Dispatch(OneFetched{Article: &article})
	return &article, nil
}

// Delete removes the article and commits Removed for the list position
// index. Only the id is sent.
func (a *Articles) Delete(ctx context.Context, id string, index int) ([]models.DeleteAck, error) {
	env, err := a.api.Post(ctx, client.Request{Path: PathDelete, Params: map[string]string{"id": id}})
	if err != nil {
		return nil, err
	}

	var acks []models.DeleteAck
	if err := env.DecodeData(&acks); err != nil {
		return nil, fmt.Errorf("decode delete acknowledgment: %w", err)
	}

	a.store.Dispatch(Removed{Index: index})
	return acks, nil
}
