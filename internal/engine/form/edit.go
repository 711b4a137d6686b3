package form

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"landr/internal/engine/fields"
	"landr/internal/pkg/nested"
)

// NewItem builds a record for an array-object field with every item field
// set to its type's zero value and a fresh id.
func NewItem(def fields.FieldDefinition) (map[string]any, error) {
	if def.Type != fields.TypeArrayObject || def.ArrayItemType.Len() == 0 {
		return nil, fmt.Errorf("field %q is not an array-object with item fields", def.Key)
	}
	item := make(map[string]any, def.ArrayItemType.Len()+1)
	for _, key := range def.ArrayItemType.Keys() {
		child, _ := def.ArrayItemType.Get(key)
		item[key] = child.Type.ZeroValue()
	}
	item["id"] = uuid.NewString()
	return item, nil
}

func listAt(doc map[string]any, path string) []any {
	v, _ := nested.Get(doc, path)
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}

func withList(doc map[string]any, path string, list []any) map[string]any {
	return nested.Set(doc, path, list)
}

// AppendText adds text to the end of the string list at path.
func AppendText(doc map[string]any, path, text string) map[string]any {
	list := listAt(doc, path)
	out := make([]any, len(list), len(list)+1)
	copy(out, list)
	return withList(doc, path, append(out, text))
}

// UpdateText replaces the entry at index of the list at path.
func UpdateText(doc map[string]any, path string, index int, text string) (map[string]any, error) {
	list := listAt(doc, path)
	if index < 0 || index >= len(list) {
		return doc, fmt.Errorf("%s: index %d out of range (len %d)", path, index, len(list))
	}
	out := make([]any, len(list))
	copy(out, list)
	out[index] = text
	return withList(doc, path, out), nil
}

// RemoveAt drops the entry at index of the list at path, keeping order.
func RemoveAt(doc map[string]any, path string, index int) (map[string]any, error) {
	list := listAt(doc, path)
	if index < 0 || index >= len(list) {
		return doc, fmt.Errorf("%s: index %d out of range (len %d)", path, index, len(list))
	}
	out := make([]any, 0, len(list)-1)
	out = append(out, list[:index]...)
	out = append(out, list[index+1:]...)
	return withList(doc, path, out), nil
}

// AppendItem adds a synthesized record to the array-object field at path.
func (r *Renderer) AppendItem(doc map[string]any, path string) (map[string]any, error) {
	def, _, ok := r.registry.Resolve(path)
	if !ok {
		return doc, fmt.Errorf("no field definition for %q", path)
	}
	item, err := NewItem(def)
	if err != nil {
		return doc, err
	}
	list := listAt(doc, path)
	out := make([]any, len(list), len(list)+1)
	copy(out, list)
	return withList(doc, path, append(out, item)), nil
}

// Apply parses raw for the field at path and sets it on doc.
func (r *Renderer) Apply(doc map[string]any, path, raw string) (map[string]any, error) {
	def, _, ok := r.registry.Resolve(path)
	if !ok {
		return doc, fmt.Errorf("no field definition for %q", path)
	}
	v, err := ParseInput(def, raw)
	if err != nil {
		return doc, fmt.Errorf("%s: %w", path, err)
	}
	return nested.TrySet(doc, path, v)
}

// ParseInput converts operator text into the value stored for def. JSON
// fields keep the raw text when it does not parse.
func ParseInput(def fields.FieldDefinition, raw string) (any, error) {
	switch def.Type {
	case fields.TypeNumber:
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case fields.TypeBoolean:
		s := strings.TrimSpace(raw)
		if s == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not true or false", raw)
		}
		return b, nil
	case fields.TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return raw, nil
		}
		return v, nil
	case fields.TypeMultiSelect, fields.TypeArrayText:
		out := []any{}
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case fields.TypeArrayObject:
		var list []any
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("expected a JSON array: %w", err)
		}
		return list, nil
	case fields.TypeText, fields.TypeTextarea, fields.TypeRichText, fields.TypeEmail,
		fields.TypeURL, fields.TypeSelect, fields.TypeDate, fields.TypeTime,
		fields.TypeImage, fields.TypeColor:
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", def.Type)
}
