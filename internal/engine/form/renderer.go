package form

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"landr/internal/engine/fields"
	"landr/internal/pkg/nested"
)

// Renderer turns registry definitions and a page document into widgets.
// It never modifies the document it is given.
type Renderer struct {
	registry *fields.Registry
	validate *validator.Validate
}

func NewRenderer(registry *fields.Registry) *Renderer {
	return &Renderer{
		registry: registry,
		validate: validator.New(),
	}
}

// Registry returns the registry the renderer was built with.
func (r *Renderer) Registry() *fields.Registry {
	return r.registry
}

// Render renders the field at path, which may address an array-object
// record field such as "sections.faq.items.0.answer".
func (r *Renderer) Render(path string, doc map[string]any) Widget {
	def, itemPrefix, ok := r.registry.Resolve(path)
	if !ok {
		return Widget{
			Path:    path,
			Label:   path,
			Kind:    KindUnsupported,
			Visible: true,
			Errors:  []string{fmt.Sprintf("no field definition for %q", path)},
		}
	}
	return r.render(def, path, doc, itemPrefix)
}

// RenderAll renders every registered top-level field in declaration order.
func (r *Renderer) RenderAll(doc map[string]any) []Widget {
	paths := r.registry.Paths()
	out := make([]Widget, 0, len(paths))
	for _, p := range paths {
		out = append(out, r.Render(p, doc))
	}
	return out
}

func (r *Renderer) render(def fields.FieldDefinition, path string, doc map[string]any, itemPrefix string) Widget {
	w := Widget{
		Path:        path,
		Label:       def.Label,
		Required:    def.IsRequired(),
		Placeholder: def.Placeholder,
	}

	kind, err := KindFor(def.Type)
	w.Kind = kind
	if err != nil {
		w.Visible = true
		w.Errors = []string{err.Error()}
		return w
	}

	if !fields.Visible(def, doc, itemPrefix) {
		return w
	}
	w.Visible = true

	raw, _ := nested.Get(doc, path)

	switch kind {
	case KindInput:
		w.InputType = string(def.Type)
		if def.Type == fields.TypeNumber {
			w.Value = coerceNumber(raw)
		} else {
			w.Value = stringValue(raw)
		}
	case KindTextarea:
		w.Value = stringValue(raw)
	case KindSelect:
		w.Value = stringValue(raw)
		w.Options = def.Options
	case KindList:
		w.Value = coerceStrings(raw)
		w.Options = def.Options
	case KindToggle:
		b, _ := raw.(bool)
		w.Value = b
	case KindColor:
		w.Value = r.color(stringValue(raw))
	case KindImage:
		u := stringValue(raw)
		w.Value = u
		if u != "" && r.validate.Var(u, "http_url") == nil {
			w.Preview = u
		}
	case KindJSON:
		w.Value = jsonText(raw)
	case KindArrayText:
		w.Value = coerceStrings(raw)
	case KindArrayObject:
		if def.ArrayItemType.Len() == 0 {
			w.Errors = []string{"array-object field has no item definition"}
			return w
		}
		w.Items = r.items(def, path, doc, raw)
	}

	w.Errors = append(w.Errors, r.registry.Check(def, raw)...)
	return w
}

func (r *Renderer) items(def fields.FieldDefinition, path string, doc map[string]any, raw any) []Item {
	list, _ := raw.([]any)
	items := make([]Item, 0, len(list))
	for i, rec := range list {
		prefix := path + "." + strconv.Itoa(i)
		item := Item{Index: i}
		if m, ok := rec.(map[string]any); ok {
			item.ID, _ = m["id"].(string)
		}
		for _, key := range def.ArrayItemType.Keys() {
			child, _ := def.ArrayItemType.Get(key)
			item.Fields = append(item.Fields, r.render(child, prefix+"."+key, doc, prefix))
		}
		items = append(items, item)
	}
	return items
}

// color expands shorthand hex for the swatch. An unparseable value keeps its
// text and shows a black swatch.
func (r *Renderer) color(hex string) Color {
	c := Color{Hex: hex, Swatch: "#000000"}
	if r.validate.Var(hex, "hexcolor") != nil {
		return c
	}
	h := strings.ToLower(strings.TrimPrefix(hex, "#"))
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		c.Swatch = "#" + h
	}
	return c
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprint(v)
}

// coerceNumber returns a float64, or nil when the value is empty or not
// numeric.
func coerceNumber(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return nil
}

func coerceStrings(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []any:
		for _, item := range list {
			out = append(out, stringValue(item))
		}
	}
	return out
}

func jsonText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(val), &parsed); err != nil {
			return val
		}
		v = parsed
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
