package handlers

import (
	"net/http"
	"strings"

	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/engine/pages"
	"landr/internal/pkg/errors"
)

type FieldHandler struct {
	registry *fields.Registry
	dev      bool
}

func NewFieldHandler(registry *fields.Registry, dev bool) *FieldHandler {
	return &FieldHandler{registry: registry, dev: dev}
}

// List returns every definition keyed by path, in declaration order.
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	errors.WriteJSON(w, http.StatusOK, h.registry.Fields(), "")
}

type fieldLookup struct {
	Path       string                 `json:"path"`
	Source     string                 `json:"source,omitempty"`
	Definition fields.FieldDefinition `json:"definition"`
}

func (h *FieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := param(r, "path")
	def, itemPrefix, ok := h.registry.Resolve(path)
	if !ok {
		errors.Respond(w, jujuerrors.NotFoundf("field %q", path), h.dev)
		return
	}

	root := path
	if itemPrefix != "" {
		for _, p := range h.registry.Paths() {
			if strings.HasPrefix(itemPrefix, p+".") {
				root = p
				break
			}
		}
	}
	errors.WriteJSON(w, http.StatusOK, fieldLookup{
		Path:       path,
		Source:     h.registry.Source(root),
		Definition: def,
	}, "")
}

type FormHandler struct {
	svc      *pages.Service
	renderer *form.Renderer
	dev      bool
}

func NewFormHandler(svc *pages.Service, renderer *form.Renderer, dev bool) *FormHandler {
	return &FormHandler{svc: svc, renderer: renderer, dev: dev}
}

type formView struct {
	ID      string        `json:"id"`
	Widgets []form.Widget `json:"widgets"`
}

// Render returns the widgets of every registered field for a stored page.
func (h *FormHandler) Render(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(param(r, "id"))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	doc, err := p.Document()
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, formView{ID: p.ID, Widgets: h.renderer.RenderAll(doc)}, "")
}

type draftCheck struct {
	Valid  bool           `json:"valid"`
	Issues []fields.Issue `json:"issues"`
}

// Validate reports what saving a draft patch would reject, without saving.
func (h *FormHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeBody(w, r, &patch); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	issues, err := h.svc.CheckDraft(param(r, "id"), patch)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, draftCheck{Valid: len(issues) == 0, Issues: issues}, "")
}
