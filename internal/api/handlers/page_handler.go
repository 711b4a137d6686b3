package handlers

import (
	"net/http"

	"landr/internal/engine/pages"
	"landr/internal/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PageHandler struct {
	svc *pages.Service
	dev bool
}

func NewPageHandler(svc *pages.Service, dev bool) *PageHandler {
	return &PageHandler{svc: svc, dev: dev}
}

// PageList is the data of a list response.
type PageList struct {
	Items []*pages.LandingPage `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	q := r.URL.Query()
	items, total, err := h.svc.List(pages.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	errors.WriteJSON(w, http.StatusOK, PageList{Items: items, Total: total, Page: page, Limit: limit}, "")
}

func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(param(r, "id"))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, p, "")
}

func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := decodeBody(w, r, &doc); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	p, err := h.svc.Create(doc)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusCreated, p, "Landing page created")
}

func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeBody(w, r, &patch); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	p, err := h.svc.Update(param(r, "id"), patch)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, p, "Landing page updated")
}

func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(param(r, "id")); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, nil, "Landing page deleted")
}

func (h *PageHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Publish, "Landing page published")
}

func (h *PageHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Unpublish, "Landing page unpublished")
}

func (h *PageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Archive, "Landing page archived")
}

func (h *PageHandler) transition(w http.ResponseWriter, r *http.Request, fn func(string) (*pages.LandingPage, error), message string) {
	p, err := fn(param(r, "id"))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, p, message)
}

func (h *PageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(param(r, "id"))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, images, "")
}

func (h *PageHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	var img pages.Image
	if err := decodeBody(w, r, &img); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	created, err := h.svc.AddImage(param(r, "id"), &img)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusCreated, created, "Image added")
}

// DeleteNested serves DELETE /api/landing-pages/:id/:sub. httprouter cannot
// register /api/landing-pages/images/:imageId next to the :id wildcard, so
// the image route shares its shape and is recognised here.
func (h *PageHandler) DeleteNested(w http.ResponseWriter, r *http.Request) {
	if param(r, "id") != "images" {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found")
		return
	}
	if err := h.svc.DeleteImage(param(r, "sub")); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, nil, "Image deleted")
}

type QRHandler struct {
	svc     *pages.Service
	baseURL string
	dev     bool
}

func NewQRHandler(svc *pages.Service, baseURL string, dev bool) *QRHandler {
	return &QRHandler{svc: svc, baseURL: baseURL, dev: dev}
}

func (h *QRHandler) Get(w http.ResponseWriter, r *http.Request) {
	png, err := h.svc.QRCode(param(r, "id"), h.baseURL, queryInt(r, "size", 0))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
