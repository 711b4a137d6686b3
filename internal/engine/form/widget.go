// Package form renders field definitions into editor widgets and applies
// operator edits to page documents.
package form

import (
	"fmt"

	"landr/internal/engine/fields"
)

// Kind is the editor behaviour chosen for a field type.
type Kind string

const (
	KindInput       Kind = "input"
	KindTextarea    Kind = "textarea"
	KindSelect      Kind = "select"
	KindList        Kind = "list"
	KindToggle      Kind = "toggle"
	KindColor       Kind = "color"
	KindImage       Kind = "image"
	KindJSON        Kind = "json"
	KindArrayText   Kind = "array-text"
	KindArrayObject Kind = "array-object"
	KindUnsupported Kind = "unsupported"
)

// KindFor maps every field type to exactly one widget kind. Adding a
// FieldType without extending this switch makes it render as unsupported
// and fail TestKindFor_CoversEveryType.
func KindFor(t fields.FieldType) (Kind, error) {
	switch t {
	case fields.TypeText, fields.TypeEmail, fields.TypeURL, fields.TypeNumber,
		fields.TypeDate, fields.TypeTime:
		return KindInput, nil
	case fields.TypeTextarea, fields.TypeRichText:
		return KindTextarea, nil
	case fields.TypeSelect:
		return KindSelect, nil
	case fields.TypeMultiSelect:
		return KindList, nil
	case fields.TypeBoolean:
		return KindToggle, nil
	case fields.TypeColor:
		return KindColor, nil
	case fields.TypeImage:
		return KindImage, nil
	case fields.TypeJSON:
		return KindJSON, nil
	case fields.TypeArrayText:
		return KindArrayText, nil
	case fields.TypeArrayObject:
		return KindArrayObject, nil
	}
	return KindUnsupported, fmt.Errorf("unsupported field type %q", t)
}

// Widget is the rendered state of one field.
type Widget struct {
	Path        string          `json:"path"`
	Label       string          `json:"label"`
	Kind        Kind            `json:"kind"`
	InputType   string          `json:"inputType,omitempty"`
	Value       any             `json:"value,omitempty"`
	Visible     bool            `json:"visible"`
	Required    bool            `json:"required,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []fields.Option `json:"options,omitempty"`
	Items       []Item          `json:"items,omitempty"`
	Preview     string          `json:"preview,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
}

// Item is one record of an array-object field.
type Item struct {
	Index  int      `json:"index"`
	ID     string   `json:"id,omitempty"`
	Fields []Widget `json:"fields"`
}

// Color keeps the raw hex text and the swatch value together.
type Color struct {
	Hex    string `json:"hex"`
	Swatch string `json:"swatch"`
}
