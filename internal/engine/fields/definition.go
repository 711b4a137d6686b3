package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FieldDefinition describes one editable field of a landing page.
type FieldDefinition struct {
	Key           string      `yaml:"key" json:"key"`
	Label         string      `yaml:"label" json:"label"`
	Type          FieldType   `yaml:"type" json:"type"`
	Required      bool        `yaml:"required" json:"required,omitempty"`
	Placeholder   string      `yaml:"placeholder" json:"placeholder,omitempty"`
	Validation    *Validation `yaml:"validation" json:"validation,omitempty"`
	Options       []Option    `yaml:"options" json:"options,omitempty"`
	ArrayItemType *FieldSet   `yaml:"arrayItemType" json:"arrayItemType,omitempty"`
	Dependencies  *Dependency `yaml:"dependencies" json:"dependencies,omitempty"`

	pattern *regexp.Regexp
}

// Option is one choice of a select or multi-select field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// UnmarshalYAML accepts either a bare scalar (value doubles as label) or a
// {value, label} mapping.
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Value = node.Value
		o.Label = node.Value
		return nil
	}
	type plain Option
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Option(p)
	if o.Label == "" {
		o.Label = o.Value
	}
	return nil
}

func (d FieldDefinition) IsRequired() bool {
	return d.Required || (d.Validation != nil && d.Validation.Required)
}

func (d FieldDefinition) HasOption(value string) bool {
	for _, o := range d.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Dependency makes a field visible only while Condition holds for the
// current value of Field.
type Dependency struct {
	Field     string    `yaml:"field" json:"field"`
	Condition Condition `yaml:"condition" json:"condition"`
}

type ConditionOp string

const (
	OpTruthy    ConditionOp = "truthy"
	OpFalsy     ConditionOp = "falsy"
	OpEquals    ConditionOp = "equals"
	OpNotEquals ConditionOp = "not_equals"
	OpIn        ConditionOp = "in"
	OpNotEmpty  ConditionOp = "not_empty"
)

type Condition struct {
	Op     ConditionOp `yaml:"op" json:"op"`
	Value  any         `yaml:"value" json:"value,omitempty"`
	Values []any       `yaml:"values" json:"values,omitempty"`
}

func (c Condition) valid() bool {
	switch c.Op {
	case OpTruthy, OpFalsy, OpEquals, OpNotEquals, OpIn, OpNotEmpty:
		return true
	}
	return false
}

// Holds evaluates the condition against v. A missing value is passed as nil.
func (c Condition) Holds(v any) bool {
	switch c.Op {
	case OpTruthy:
		return Truthy(v)
	case OpFalsy:
		return !Truthy(v)
	case OpEquals:
		return looseEqual(v, c.Value)
	case OpNotEquals:
		return !looseEqual(v, c.Value)
	case OpIn:
		for _, candidate := range c.Values {
			if looseEqual(v, candidate) {
				return true
			}
		}
		return false
	case OpNotEmpty:
		return !IsEmpty(v)
	}
	return false
}

// Truthy follows the usual JSON-ish notion: false, 0, "", nil and empty
// containers are falsy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return true
	case map[string]any:
		return true
	}
	return true
}

// IsEmpty reports nil, "", and zero-length lists or maps.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FieldSet is an ordered mapping of field key to definition.
type FieldSet struct {
	keys []string
	defs map[string]FieldDefinition
}

func NewFieldSet() *FieldSet {
	return &FieldSet{defs: make(map[string]FieldDefinition)}
}

// Add appends a definition, keyed by def.Key. It fails on a duplicate key.
func (s *FieldSet) Add(def FieldDefinition) error {
	if s.defs == nil {
		s.defs = make(map[string]FieldDefinition)
	}
	if _, exists := s.defs[def.Key]; exists {
		return fmt.Errorf("duplicate field key %q", def.Key)
	}
	s.keys = append(s.keys, def.Key)
	s.defs[def.Key] = def
	return nil
}

func (s *FieldSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *FieldSet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *FieldSet) Get(key string) (FieldDefinition, bool) {
	if s == nil {
		return FieldDefinition{}, false
	}
	d, ok := s.defs[key]
	return d, ok
}

func (s *FieldSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field set must be a mapping", node.Line)
	}
	s.keys = nil
	s.defs = make(map[string]FieldDefinition)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var def FieldDefinition
		if err := node.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if def.Key == "" {
			def.Key = key
		}
		if def.Key != key {
			return fmt.Errorf("line %d: field %q declares mismatched key %q", node.Content[i].Line, key, def.Key)
		}
		if err := s.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON keeps declaration order.
func (s *FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		db, err := json.Marshal(s.defs[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(db)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
