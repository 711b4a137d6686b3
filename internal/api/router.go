package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	apiContext "landr/internal/api/context"
	"landr/internal/api/handlers"
	"landr/internal/api/middleware"
	"landr/internal/pkg/errors"
	"landr/internal/platform/metrics"
)

type Dependencies struct {
	PageHandler    *handlers.PageHandler
	FieldHandler   *handlers.FieldHandler
	FormHandler    *handlers.FormHandler
	QRHandler      *handlers.QRHandler
	WebhookHandler *handlers.WebhookHandler
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string

	// Optional; /metrics is only served when both are set.
	Metrics        *metrics.Collector
	MetricsHandler *handlers.MetricsHandler
}

// NewRouter builds the route table and wraps it in the global middleware.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
	routes := newRouteTable(router)

	routes.GET("/health", wrap(deps.HealthHandler.Check))
	if deps.Metrics != nil && deps.MetricsHandler != nil {
		routes.GET("/metrics", wrap(deps.MetricsHandler.Export))
	}

	limit := deps.RateLimiter.Handle
	authMid := deps.AuthMiddleware.Handle

	// Authentication
	routes.POST("/api/auth/token", chain(deps.AuthHandler.Token, limit))

	// Landing pages
	pages := deps.PageHandler
	routes.GET("/api/landing-pages", chain(pages.List, limit, authMid))
	routes.POST("/api/landing-pages", chain(pages.Create, limit, authMid))
	routes.GET("/api/landing-pages/:id", chain(pages.Get, limit, authMid))
	routes.PUT("/api/landing-pages/:id", chain(pages.Update, limit, authMid))
	routes.DELETE("/api/landing-pages/:id", chain(pages.Delete, limit, authMid))
	routes.POST("/api/landing-pages/:id/publish", chain(pages.Publish, limit, authMid))
	routes.POST("/api/landing-pages/:id/unpublish", chain(pages.Unpublish, limit, authMid))
	routes.POST("/api/landing-pages/:id/archive", chain(pages.Archive, limit, authMid))

	// Images; DELETE /api/landing-pages/images/:imageId lands on :id/:sub
	routes.GET("/api/landing-pages/:id/images", chain(pages.ListImages, limit, authMid))
	routes.POST("/api/landing-pages/:id/images", chain(pages.AddImage, limit, authMid))
	routes.DELETE("/api/landing-pages/:id/:sub", chain(pages.DeleteNested, limit, authMid))

	// Dynamic form and QR
	routes.GET("/api/landing-pages/:id/form", chain(deps.FormHandler.Render, limit, authMid))
	routes.POST("/api/landing-pages/:id/form/validate", chain(deps.FormHandler.Validate, limit, authMid))
	routes.GET("/api/landing-pages/:id/qr", chain(deps.QRHandler.Get, limit, authMid))

	// Field registry
	routes.GET("/api/fields", chain(deps.FieldHandler.List, limit, authMid))
	routes.GET("/api/fields/:path", chain(deps.FieldHandler.Get, limit, authMid))

	// Webhooks
	webhooks := deps.WebhookHandler
	routes.POST("/api/webhooks", chain(webhooks.Create, limit, authMid))
	routes.GET("/api/webhooks", chain(webhooks.List, limit, authMid))
	routes.GET("/api/webhooks/logs", chain(webhooks.Logs, limit, authMid))
	routes.PATCH("/api/webhooks/:id/toggle", chain(webhooks.Toggle, limit, authMid))

	var handler http.Handler = router
	handler = middleware.CORS(deps.AllowedOrigins)(handler)
	handler = middleware.Recover(handler)
	if deps.Metrics != nil {
		handler = middleware.Metrics(deps.Metrics, routes.pattern)(handler)
	}
	handler = middleware.Logger(handler)
	return handler
}

// routeTable registers handlers on the router and remembers each pattern so
// that requests can be labelled with the route they matched.
type routeTable struct {
	router   *httprouter.Router
	patterns map[string][]string
}

func newRouteTable(router *httprouter.Router) *routeTable {
	return &routeTable{router: router, patterns: make(map[string][]string)}
}

func (rt *routeTable) handle(method, path string, h httprouter.Handle) {
	rt.router.Handle(method, path, h)
	rt.patterns[method] = append(rt.patterns[method], path)
}

func (rt *routeTable) GET(path string, h httprouter.Handle)    { rt.handle(http.MethodGet, path, h) }
func (rt *routeTable) POST(path string, h httprouter.Handle)   { rt.handle(http.MethodPost, path, h) }
func (rt *routeTable) PUT(path string, h httprouter.Handle)    { rt.handle(http.MethodPut, path, h) }
func (rt *routeTable) PATCH(path string, h httprouter.Handle)  { rt.handle(http.MethodPatch, path, h) }
func (rt *routeTable) DELETE(path string, h httprouter.Handle) { rt.handle(http.MethodDelete, path, h) }

// pattern maps a request back to the pattern it was registered under,
// e.g. /api/landing-pages/abc/images -> /api/landing-pages/:id/images.
// Parameters are matched by position, so a value that happens to equal a
// literal segment does not change the label.
func (rt *routeTable) pattern(r *http.Request) string {
	handle, ps, _ := rt.router.Lookup(r.Method, r.URL.Path)
	if handle == nil {
		return "unmatched"
	}
	segs := strings.Split(r.URL.Path, "/")
	for _, pattern := range rt.patterns[r.Method] {
		if matchesPattern(strings.Split(pattern, "/"), segs, ps) {
			return pattern
		}
	}
	return "unmatched"
}

func matchesPattern(pattern, segs []string, ps httprouter.Params) bool {
	if len(pattern) != len(segs) {
		return false
	}
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segs[i] == "" || ps.ByName(name) != segs[i] {
				return false
			}
			continue
		}
		if p != segs[i] {
			return false
		}
	}
	return true
}

// chain applies middlewares so that the first one listed runs first.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts an http.HandlerFunc to an httprouter.Handle, passing the
// route params through the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
