// Package client wraps the article API: it stamps every request with the
// stored auth token, decodes the {code, data, msg} envelope and routes
// failures to a Notifier.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/go-resty/resty/v2"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// File is one file part of an upload
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Request describes one API call. Zero fields take the operation's default.
type Request struct {
	Path   string
	Method string
	Params map[string]string
	Files  []File

	contentType string
	multipart   bool
}

// Config configures a Client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Tokens     TokenStore
	Notifier   Notifier
}

type Client struct {
	http     *resty.Client
	tokens   TokenStore
	notifier Notifier
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.Tokens == nil {
		cfg.Tokens = &MemoryTokens{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10 * cfg.RetryWait).
		AddRetryCondition(retryGet)

	return &Client{http: rc, tokens: cfg.Tokens, notifier: cfg.Notifier}
}

// retryGet limits retries to GET requests failing with a network error or a 5xx
func retryGet(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// Tokens exposes the token store, e.g. to save a token after login
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// Get sends params in the query string
func (c *Client) Get(ctx context.Context, req Request) (*models.RawEnvelope, error) {
	return c.do(ctx, merge(Request{Method: http.MethodGet}, req))
}

// Post sends params as an urlencoded body
func (c *Client) Post(ctx context.Context, req Request) (*models.RawEnvelope, error) {
	return c.do(ctx, merge(Request{Method: http.MethodPost, contentType: contentTypeForm}, req))
}

// Upload sends params and files as multipart/form-data
func (c *Client) Upload(ctx context.Context, req Request) (*models.RawEnvelope, error) {
	return c.do(ctx, merge(Request{Method: http.MethodPost, multipart: true}, req))
}

// merge overlays req on def. Params are copied so the caller's map is never modified.
func merge(def, req Request) Request {
	out := def
	out.Path = req.Path
	if req.Method != "" {
		out.Method = req.Method
	}
	out.Params = make(map[string]string, len(def.Params)+len(req.Params)+1)
	for k, v := range def.Params {
		out.Params[k] = v
	}
	for k, v := range req.Params {
		out.Params[k] = v
	}
	out.Files = req.Files
	return out
}

func (c *Client) do(ctx context.Context, req Request) (*models.RawEnvelope, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if token != "" {
		req.Params["token"] = token
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")

	switch {
	case req.multipart:
		r.SetMultipartFormData(req.Params)
		for _, f := range req.Files {
			field := f.Field
			if field == "" {
				field = "file"
			}
			r.SetFileReader(field, f.Name, f.Reader)
		}
	case req.Method == http.MethodGet:
		r.SetQueryParams(req.Params)
	default:
		r.SetHeader("Content-Type", req.contentType)
		r.SetFormData(req.Params)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		c.notifier.Error(fmt.Sprintf("request to %s failed: %v", req.Path, err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	return c.classify(req, resp)
}

func isOK(status int) bool {
	return status >= 200 && status < 300
}

func (c *Client) classify(req Request, resp *resty.Response) (*models.RawEnvelope, error) {
	if !isOK(resp.StatusCode()) {
		statusErr := &StatusError{Method: req.Method, Path: req.Path, Status: resp.StatusCode()}
		c.notifier.Error(statusErr.Error())
		return nil, statusErr
	}

	var env models.RawEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		appErr := &AppError{Code: models.CodeInternal, Msg: "malformed response", Err: err}
		c.notifier.Warning(appErr.Msg)
		return nil, appErr
	}

	switch env.Code {
	case models.CodeSuccess:
		return &env, nil
	case models.CodeLoginRequired:
		c.notifier.ShowLogin()
	}

	c.notifier.Warning(env.Msg)
	return nil, &AppError{Code: env.Code, Msg: env.Msg}
}
