// Package client talks to the landr REST API on behalf of landrctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/engine/pages"
	"landr/internal/platform/models"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// Is maps HTTP statuses onto the juju error kinds the server started from.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == jujuerrors.NotValid || target == jujuerrors.BadRequest
	case http.StatusUnauthorized:
		return target == jujuerrors.Unauthorized
	case http.StatusForbidden:
		return target == jujuerrors.Forbidden
	case http.StatusNotFound:
		return target == jujuerrors.NotFound
	case http.StatusConflict:
		return target == jujuerrors.AlreadyExists
	}
	return false
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return jujuerrors.Annotatef(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode}
		}
		return jujuerrors.Annotatef(err, "decode %s %s", method, path)
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Login exchanges operator credentials for a bearer token and keeps it for
// later calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/token", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return "", err
	}
	c.token = resp.AccessToken
	return resp.AccessToken, nil
}

type ListOptions struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type PageList struct {
	Items []*pages.LandingPage `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

func (c *Client) ListPages(ctx context.Context, opts ListOptions) (*PageList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	path := "/api/landing-pages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list PageList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetPage(ctx context.Context, id string) (*pages.LandingPage, error) {
	var p pages.LandingPage
	if err := c.do(ctx, http.MethodGet, "/api/landing-pages/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePage(ctx context.Context, doc map[string]any) (*pages.LandingPage, error) {
	var p pages.LandingPage
	if err := c.do(ctx, http.MethodPost, "/api/landing-pages", doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePage(ctx context.Context, id string, patch map[string]any) (*pages.LandingPage, error) {
	var p pages.LandingPage
	if err := c.do(ctx, http.MethodPut, "/api/landing-pages/"+url.PathEscape(id), patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/landing-pages/"+url.PathEscape(id), nil, nil)
}

// Transition runs one of the status actions: publish, unpublish or archive.
func (c *Client) Transition(ctx context.Context, id, action string) (*pages.LandingPage, error) {
	switch action {
	case "publish", "unpublish", "archive":
	default:
		return nil, jujuerrors.NotValidf("action %q", action)
	}
	var p pages.LandingPage
	if err := c.do(ctx, http.MethodPost, "/api/landing-pages/"+url.PathEscape(id)+"/"+action, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type FieldEntry struct {
	Path       string
	Definition fields.FieldDefinition
}

// Fields returns the registry in declaration order.
func (c *Client) Fields(ctx context.Context) ([]FieldEntry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/fields", nil, &raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, jujuerrors.Errorf("fields: expected an object")
	}
	var out []FieldEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		path, _ := tok.(string)
		var def fields.FieldDefinition
		if err := dec.Decode(&def); err != nil {
			return nil, jujuerrors.Annotatef(err, "field %q", path)
		}
		out = append(out, FieldEntry{Path: path, Definition: def})
	}
	return out, nil
}

type FormView struct {
	ID      string        `json:"id"`
	Widgets []form.Widget `json:"widgets"`
}

func (c *Client) Form(ctx context.Context, id string) (*FormView, error) {
	var v FormView
	if err := c.do(ctx, http.MethodGet, "/api/landing-pages/"+url.PathEscape(id)+"/form", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CheckDraft(ctx context.Context, id string, patch map[string]any) ([]fields.Issue, error) {
	var resp struct {
		Issues []fields.Issue `json:"issues"`
	}
	err := c.do(ctx, http.MethodPost, "/api/landing-pages/"+url.PathEscape(id)+"/form/validate", patch, &resp)
	return resp.Issues, err
}

func (c *Client) ListWebhooks(ctx context.Context) ([]*models.WebhookConfig, error) {
	var out []*models.WebhookConfig
	err := c.do(ctx, http.MethodGet, "/api/webhooks", nil, &out)
	return out, err
}

type NewWebhook struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

func (c *Client) CreateWebhook(ctx context.Context, w NewWebhook) (*models.WebhookConfig, error) {
	var out models.WebhookConfig
	if err := c.do(ctx, http.MethodPost, "/api/webhooks", w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleWebhook(ctx context.Context, id string) (*models.WebhookConfig, error) {
	var out models.WebhookConfig
	if err := c.do(ctx, http.MethodPatch, "/api/webhooks/"+url.PathEscape(id)+"/toggle", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WebhookLogs lists delivery attempts, newest first. An empty webhookID
// returns attempts for every webhook.
func (c *Client) WebhookLogs(ctx context.Context, webhookID string, limit int) ([]*models.WebhookLog, error) {
	q := url.Values{}
	if webhookID != "" {
		q.Set("webhookId", webhookID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/webhooks/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []*models.WebhookLog
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
