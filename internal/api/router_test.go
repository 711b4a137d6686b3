package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"landr/internal/api/handlers"
	"landr/internal/api/middleware"
	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/engine/pages"
	"landr/internal/engine/webhooks"
	"landr/internal/platform/auth"
	"landr/internal/platform/config"
	"landr/internal/platform/database"
	"landr/internal/platform/metrics"
	"landr/internal/platform/repositories"
)

type testServer struct {
	*httptest.Server
	db         *sql.DB
	dispatcher *webhooks.Dispatcher
	token      string
}

func newTestServer(t *testing.T, authEnabled bool) *testServer {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	registry, err := fields.LoadDefault()
	if err != nil {
		t.Fatal(err)
	}

	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewWebhookLogRepository(db)
	dispatcher := webhooks.NewDispatcher(webhookRepo, logRepo, config.WebhooksConfig{Timeout: 2 * time.Second}, nil)
	svc := pages.NewService(pages.NewRepository(db), registry, dispatcher, nil)
	collector := metrics.NewCollector()
	dispatcher.Observe(collector)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour}, nil)
	operators := auth.NewOperators([]config.OperatorConfig{{Username: "ana", PasswordHash: string(hash)}})

	handler := NewRouter(&Dependencies{
		PageHandler:    handlers.NewPageHandler(svc, true),
		FieldHandler:   handlers.NewFieldHandler(registry, true),
		FormHandler:    handlers.NewFormHandler(svc, form.NewRenderer(registry), true),
		QRHandler:      handlers.NewQRHandler(svc, "https://sites.example.com", true),
		WebhookHandler: handlers.NewWebhookHandler(webhookRepo, logRepo, true),
		AuthHandler:    handlers.NewAuthHandler(operators, tokens, true),
		HealthHandler:  handlers.NewHealthHandler(db, nil),
		AuthMiddleware: middleware.NewAuthMiddleware(tokens, authEnabled),
		RateLimiter:    middleware.NewRateLimiter(config.RateLimitConfig{}),
		Metrics:        collector,
		MetricsHandler: handlers.NewMetricsHandler(metrics.NewRegistry(collector)),
	})

	ts := &testServer{Server: httptest.NewServer(handler), db: db, dispatcher: dispatcher}
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dispatcher.Wait(ctx)
		db.Close()
	})
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (ts *testServer) flushWebhooks(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.dispatcher.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func samplePage() map[string]any {
	return map[string]any{
		"templateId":   "bakery-downtown",
		"githubUrl":    "https://github.com/acme/bakery",
		"businessName": "Downtown Bakery",
		"images": []any{map[string]any{
			"slotName": "hero",
			"title":    "X",
			"altText":  "Y",
			"imageUrl": "https://e/x.png",
			"category": "general",
		}},
	}
}

func TestCreateThenPublish(t *testing.T) {
	ts := newTestServer(t, false)

	status, env := ts.do(t, http.MethodPost, "/api/landing-pages", samplePage())
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("create status = %d, env = %+v", status, env)
	}

	var created pages.LandingPage
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if len(created.Images) != 1 || created.Status != "draft" {
		t.Fatalf("created = %d images, status %q", len(created.Images), created.Status)
	}

	status, env = ts.do(t, http.MethodPost, "/api/landing-pages/"+created.ID+"/publish", nil)
	if status != http.StatusOK {
		t.Fatalf("publish status = %d, env = %+v", status, env)
	}

	var published pages.LandingPage
	if err := json.Unmarshal(env.Data, &published); err != nil {
		t.Fatal(err)
	}
	if published.Status != "published" || published.PublishedAt == nil {
		t.Errorf("published = %q at %v", published.Status, published.PublishedAt)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	ts := newTestServer(t, false)

	bad := samplePage()
	delete(bad, "businessName")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"validation", http.MethodPost, "/api/landing-pages", bad, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing page", http.MethodGet, "/api/landing-pages/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"update missing", http.MethodPut, "/api/landing-pages/nope", map[string]any{"businessName": "x"}, http.StatusNotFound, "NOT_FOUND"},
		{"delete missing", http.MethodDelete, "/api/landing-pages/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"delete missing image", http.MethodDelete, "/api/landing-pages/images/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown nested delete", http.MethodDelete, "/api/landing-pages/abc/def", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad status filter", http.MethodGet, "/api/landing-pages?status=live", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", http.MethodGet, "/api/fields/nope.nothing", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad webhook", http.MethodPost, "/api/webhooks", map[string]any{"name": "x", "url": "ftp://x", "events": []string{"deleted"}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"toggle missing webhook", http.MethodPatch, "/api/webhooks/nope/toggle", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, tt.method, tt.path, tt.body)
			if status != tt.status || env.Code != tt.code || env.Success {
				t.Errorf("got %d %+v, want %d %s", status, env, tt.status, tt.code)
			}
		})
	}

	_, env := ts.do(t, http.MethodPost, "/api/landing-pages", bad)
	if env.Message != "businessName: is required" {
		t.Errorf("validation message = %q", env.Message)
	}
}

func TestImagesAndListing(t *testing.T) {
	ts := newTestServer(t, false)

	_, env := ts.do(t, http.MethodPost, "/api/landing-pages", samplePage())
	var created pages.LandingPage
	json.Unmarshal(env.Data, &created)

	status, env := ts.do(t, http.MethodPost, "/api/landing-pages/"+created.ID+"/images",
		map[string]any{"slotName": "gallery", "imageUrl": "https://e/g.png"})
	if status != http.StatusCreated {
		t.Fatalf("add image status = %d %+v", status, env)
	}
	var img pages.Image
	json.Unmarshal(env.Data, &img)

	status, _ = ts.do(t, http.MethodDelete, "/api/landing-pages/images/"+img.ID, nil)
	if status != http.StatusOK {
		t.Errorf("delete image status = %d", status)
	}

	_, env = ts.do(t, http.MethodGet, "/api/landing-pages/"+created.ID+"/images", nil)
	var images []pages.Image
	json.Unmarshal(env.Data, &images)
	if len(images) != 1 {
		t.Errorf("images = %d, want 1", len(images))
	}

	_, env = ts.do(t, http.MethodGet, "/api/landing-pages?search=downtown&page=1&limit=10", nil)
	var list handlers.PageList
	json.Unmarshal(env.Data, &list)
	if list.Total != 1 || len(list.Items) != 1 || list.Limit != 10 {
		t.Errorf("list = %+v", list)
	}
}

func TestWebhookDeliveryLogged(t *testing.T) {
	ts := newTestServer(t, false)

	var hits atomic.Int32
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	status, env := ts.do(t, http.MethodPost, "/api/webhooks", map[string]any{
		"name":   "deploy",
		"url":    receiver.URL,
		"events": []string{"created", "updated"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create webhook = %d %+v", status, env)
	}
	var hook struct {
		ID string `json:"id"`
	}
	json.Unmarshal(env.Data, &hook)

	_, env = ts.do(t, http.MethodPost, "/api/landing-pages", samplePage())
	var created pages.LandingPage
	json.Unmarshal(env.Data, &created)
	ts.do(t, http.MethodPut, "/api/landing-pages/"+created.ID, map[string]any{"seo": map[string]any{"metaTitle": "Hi"}})
	ts.flushWebhooks(t)

	if hits.Load() != 2 {
		t.Errorf("receiver hits = %d, want 2", hits.Load())
	}

	_, env = ts.do(t, http.MethodGet, "/api/webhooks/logs?webhookId="+hook.ID, nil)
	var logs []struct {
		Event      string `json:"event"`
		Status     string `json:"status"`
		StatusCode int    `json:"statusCode"`
		RetryCount int    `json:"retryCount"`
	}
	json.Unmarshal(env.Data, &logs)
	if len(logs) != 2 {
		t.Fatalf("logs = %+v", logs)
	}
	for _, l := range logs {
		if l.Status != "success" || l.StatusCode != http.StatusNoContent || l.RetryCount != 0 {
			t.Errorf("log = %+v", l)
		}
	}

	status, env = ts.do(t, http.MethodPatch, "/api/webhooks/"+hook.ID+"/toggle", nil)
	var toggled struct {
		IsActive bool `json:"isActive"`
	}
	json.Unmarshal(env.Data, &toggled)
	if status != http.StatusOK || toggled.IsActive {
		t.Errorf("toggle = %d, isActive %v", status, toggled.IsActive)
	}
}

func TestFormEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	_, env := ts.do(t, http.MethodPost, "/api/landing-pages", samplePage())
	var created pages.LandingPage
	json.Unmarshal(env.Data, &created)

	status, env := ts.do(t, http.MethodGet, "/api/landing-pages/"+created.ID+"/form", nil)
	if status != http.StatusOK {
		t.Fatalf("form status = %d", status)
	}
	var view struct {
		Widgets []form.Widget `json:"widgets"`
	}
	json.Unmarshal(env.Data, &view)
	if len(view.Widgets) == 0 || view.Widgets[0].Path != "templateId" || view.Widgets[0].Value != "bakery-downtown" {
		t.Errorf("first widget = %+v", view.Widgets[0])
	}

	_, env = ts.do(t, http.MethodPost, "/api/landing-pages/"+created.ID+"/form/validate",
		map[string]any{"theme": map[string]any{"primaryColor": "nope"}})
	var check struct {
		Valid  bool           `json:"valid"`
		Issues []fields.Issue `json:"issues"`
	}
	json.Unmarshal(env.Data, &check)
	if check.Valid || len(check.Issues) != 1 || check.Issues[0].Path != "theme.primaryColor" {
		t.Errorf("check = %+v", check)
	}

	status, env = ts.do(t, http.MethodGet, "/api/fields/sections.faq.items.0.question", nil)
	if status != http.StatusOK {
		t.Errorf("field lookup = %d %+v", status, env)
	}
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t, false)

	_, env := ts.do(t, http.MethodPost, "/api/landing-pages", samplePage())
	var created pages.LandingPage
	json.Unmarshal(env.Data, &created)

	resp, err := http.Get(ts.URL + "/api/landing-pages/" + created.ID + "/qr?size=256")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("qr response = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, true)

	if status, _ := ts.do(t, http.MethodGet, "/api/landing-pages", nil); status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", status)
	}

	status, _ := ts.do(t, http.MethodPost, "/api/auth/token", map[string]string{"username": "ana", "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", status)
	}

	status, env := ts.do(t, http.MethodPost, "/api/auth/token", map[string]string{"username": "ana", "password": "hunter2"})
	if status != http.StatusOK {
		t.Fatalf("login status = %d %+v", status, env)
	}
	var tok handlers.TokenResponse
	json.Unmarshal(env.Data, &tok)
	ts.token = tok.AccessToken

	if status, _ := ts.do(t, http.MethodGet, "/api/landing-pages", nil); status != http.StatusOK {
		t.Errorf("authenticated status = %d", status)
	}

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	ts.do(t, http.MethodGet, "/api/landing-pages/does-not-exist", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	want := `landr_http_requests_total{code="404",method="GET",route="/api/landing-pages/:id"} 1`
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
		t.Errorf("status %d, body missing %q:\n%s", resp.StatusCode, want, body)
	}
}

func TestRouteTable_Pattern(t *testing.T) {
	routes := newRouteTable(httprouter.New())
	noop := func(http.ResponseWriter, *http.Request, httprouter.Params) {}
	routes.GET("/api/landing-pages/:id", noop)
	routes.GET("/api/landing-pages/:id/images", noop)
	routes.DELETE("/api/landing-pages/:id/:sub", noop)
	routes.GET("/api/fields/:path", noop)
	routes.GET("/api/webhooks/logs", noop)

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/landing-pages/p1", "/api/landing-pages/:id"},
		{http.MethodGet, "/api/landing-pages/p1/images", "/api/landing-pages/:id/images"},
		{http.MethodDelete, "/api/landing-pages/images/img_1", "/api/landing-pages/:id/:sub"},
		{http.MethodGet, "/api/fields/seo.metaTitle", "/api/fields/:path"},
		{http.MethodGet, "/api/webhooks/logs", "/api/webhooks/logs"},
		// ids that equal a literal segment
		{http.MethodGet, "/api/landing-pages/landing-pages", "/api/landing-pages/:id"},
		{http.MethodGet, "/api/landing-pages/api/images", "/api/landing-pages/:id/images"},
		{http.MethodDelete, "/api/landing-pages/landing-pages/landing-pages", "/api/landing-pages/:id/:sub"},
		{http.MethodGet, "/nope", "unmatched"},
		{http.MethodPost, "/api/landing-pages/p1", "unmatched"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := routes.pattern(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
				t.Errorf("pattern(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
			}
		})
	}
}
