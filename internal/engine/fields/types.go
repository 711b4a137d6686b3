package fields

import "fmt"

// FieldType is the closed set of input kinds a field can declare.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeRichText    FieldType = "rich-text"
	TypeNumber      FieldType = "number"
	TypeEmail       FieldType = "email"
	TypeURL         FieldType = "url"
	TypeSelect      FieldType = "select"
	TypeMultiSelect FieldType = "multi-select"
	TypeBoolean     FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeTime        FieldType = "time"
	TypeImage       FieldType = "image"
	TypeColor       FieldType = "color"
	TypeJSON        FieldType = "json"
	TypeArrayText   FieldType = "array-text"
	TypeArrayObject FieldType = "array-object"
)

var allFieldTypes = []FieldType{
	TypeText, TypeTextarea, TypeRichText, TypeNumber, TypeEmail, TypeURL,
	TypeSelect, TypeMultiSelect, TypeBoolean, TypeDate, TypeTime, TypeImage,
	TypeColor, TypeJSON, TypeArrayText, TypeArrayObject,
}

// AllFieldTypes returns every declared FieldType.
func AllFieldTypes() []FieldType {
	out := make([]FieldType, len(allFieldTypes))
	copy(out, allFieldTypes)
	return out
}

func (t FieldType) Valid() bool {
	for _, known := range allFieldTypes {
		if t == known {
			return true
		}
	}
	return false
}

func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return t, nil
}

// IsList reports whether values of this type are stored as arrays.
func (t FieldType) IsList() bool {
	return t == TypeMultiSelect || t == TypeArrayText || t == TypeArrayObject
}

// ZeroValue is the value a freshly synthesized record gets for a field of
// this type.
func (t FieldType) ZeroValue() any {
	switch t {
	case TypeBoolean:
		return false
	case TypeNumber:
		return float64(0)
	case TypeArrayText:
		return []any{}
	case TypeText, TypeTextarea, TypeRichText, TypeEmail, TypeURL, TypeSelect,
		TypeMultiSelect, TypeDate, TypeTime, TypeImage, TypeColor, TypeJSON,
		TypeArrayObject:
		return ""
	}
	panic(fmt.Sprintf("fields: ZeroValue for unhandled type %q", t))
}
