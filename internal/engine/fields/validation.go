package fields

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validation is the rule attached to a field. Every limit is optional.
type Validation struct {
	Required  bool     `yaml:"required" json:"required,omitempty"`
	MinLength *int     `yaml:"minLength" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength" json:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern" json:"pattern,omitempty"`
	Min       *float64 `yaml:"min" json:"min,omitempty"`
	Max       *float64 `yaml:"max" json:"max,omitempty"`
	MinItems  *int     `yaml:"minItems" json:"minItems,omitempty"`
	MaxItems  *int     `yaml:"maxItems" json:"maxItems,omitempty"`
	Format    string   `yaml:"format" json:"format,omitempty"`
	Default   any      `yaml:"default" json:"default,omitempty"`
}

const (
	FormatURL   = "url"
	FormatEmail = "email"
	FormatDate  = "date"
	FormatTime  = "time"
)

// checker runs a definition's rules against a value. It is shared by the
// registry and is safe for concurrent use.
type checker struct {
	validate *validator.Validate
}

func newChecker() *checker {
	return &checker{validate: validator.New()}
}

func (c *checker) check(def FieldDefinition, v any) []string {
	if IsEmpty(v) {
		if def.IsRequired() {
			return []string{"is required"}
		}
		return nil
	}

	var msgs []string
	switch def.Type {
	case TypeText, TypeTextarea, TypeRichText:
		msgs = c.checkString(def, v, "")
	case TypeDate:
		msgs = c.checkString(def, v, FormatDate)
	case TypeTime:
		msgs = c.checkString(def, v, FormatTime)
	case TypeEmail:
		msgs = c.checkString(def, v, FormatEmail)
	case TypeURL, TypeImage:
		msgs = c.checkString(def, v, FormatURL)
	case TypeColor:
		msgs = c.checkString(def, v, "")
		if s, ok := v.(string); ok && c.validate.Var(s, "hexcolor") != nil {
			msgs = append(msgs, "must be a hex color")
		}
	case TypeSelect:
		s, ok := v.(string)
		if !ok {
			return []string{"must be a string"}
		}
		if len(def.Options) > 0 && !def.HasOption(s) {
			msgs = append(msgs, fmt.Sprintf("must be one of %s", optionList(def)))
		}
	case TypeMultiSelect, TypeArrayText:
		items, ok := stringItems(v)
		if !ok {
			return []string{"must be a list of strings"}
		}
		// multi-select is a free-text list; options are only suggestions.
		msgs = append(msgs, c.checkCount(def, len(items))...)
	case TypeArrayObject:
		list, ok := v.([]any)
		if !ok {
			return []string{"must be a list"}
		}
		msgs = append(msgs, c.checkCount(def, len(list))...)
	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return []string{"must be a number"}
		}
		if r := def.Validation; r != nil {
			if r.Min != nil && n < *r.Min {
				msgs = append(msgs, fmt.Sprintf("must be at least %g", *r.Min))
			}
			if r.Max != nil && n > *r.Max {
				msgs = append(msgs, fmt.Sprintf("must be at most %g", *r.Max))
			}
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			msgs = append(msgs, "must be true or false")
		}
	case TypeJSON:
		// any structured value is acceptable
	default:
		msgs = append(msgs, fmt.Sprintf("has unsupported field type %q", def.Type))
	}
	return msgs
}

func (c *checker) checkString(def FieldDefinition, v any, impliedFormat string) []string {
	s, ok := v.(string)
	if !ok {
		return []string{"must be a string"}
	}

	var msgs []string
	format := impliedFormat
	if r := def.Validation; r != nil {
		n := utf8.RuneCountInString(s)
		if r.MinLength != nil && n < *r.MinLength {
			msgs = append(msgs, fmt.Sprintf("must be at least %d characters", *r.MinLength))
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			msgs = append(msgs, fmt.Sprintf("must be at most %d characters", *r.MaxLength))
		}
		if def.pattern != nil && !def.pattern.MatchString(s) {
			msgs = append(msgs, "has an invalid format")
		}
		if r.Format != "" {
			format = r.Format
		}
	}

	switch format {
	case FormatURL:
		if c.validate.Var(s, "http_url") != nil {
			msgs = append(msgs, "must be a valid URL")
		}
	case FormatEmail:
		if c.validate.Var(s, "email") != nil {
			msgs = append(msgs, "must be a valid email address")
		}
	case FormatDate:
		if c.validate.Var(s, "datetime=2006-01-02") != nil {
			msgs = append(msgs, "must be a date (YYYY-MM-DD)")
		}
	case FormatTime:
		if c.validate.Var(s, "datetime=15:04") != nil {
			msgs = append(msgs, "must be a time (HH:MM)")
		}
	}
	return msgs
}

func (c *checker) checkCount(def FieldDefinition, n int) []string {
	r := def.Validation
	if r == nil {
		return nil
	}
	var msgs []string
	if r.MinItems != nil && n < *r.MinItems {
		msgs = append(msgs, fmt.Sprintf("must have at least %d items", *r.MinItems))
	}
	if r.MaxItems != nil && n > *r.MaxItems {
		msgs = append(msgs, fmt.Sprintf("must have at most %d items", *r.MaxItems))
	}
	return msgs
}

func stringItems(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func optionList(def FieldDefinition) string {
	values := make([]string, len(def.Options))
	for i, o := range def.Options {
		values[i] = o.Value
	}
	return strings.Join(values, ", ")
}
