package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"landr/internal/pkg/nested"
)

// Source is one topic-scoped group of field definitions keyed by dotted path.
type Source struct {
	Name   string    `yaml:"name"`
	Fields *FieldSet `yaml:"fields"`
}

// Registry maps dotted field paths to definitions. It is immutable once
// built and safe to share between goroutines.
type Registry struct {
	fields  *FieldSet
	origin  map[string]string
	checker *checker
}

// NewRegistry merges sources into a registry. Definitions are checked while
// merging: a path claimed by two sources, an unknown type, a select without
// options, a bad pattern, or an arrayItemType that does not line up with the
// array-object type all fail construction.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{
		fields:  NewFieldSet(),
		origin:  make(map[string]string),
		checker: newChecker(),
	}

	for _, src := range sources {
		for _, path := range src.Fields.Keys() {
			def, _ := src.Fields.Get(path)

			if owner, dup := r.origin[path]; dup {
				return nil, fmt.Errorf("field %q defined by both %q and %q", path, owner, src.Name)
			}

			prepared, err := prepare(def, path)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", src.Name, err)
			}
			if err := r.fields.Add(prepared); err != nil {
				return nil, err
			}
			r.origin[path] = src.Name
		}
	}

	return r, nil
}

func prepare(def FieldDefinition, where string) (FieldDefinition, error) {
	if !def.Type.Valid() {
		return def, fmt.Errorf("field %q: unknown type %q", where, def.Type)
	}
	if def.Label == "" {
		return def, fmt.Errorf("field %q: label is required", where)
	}

	switch {
	case def.Type == TypeArrayObject && def.ArrayItemType.Len() == 0:
		return def, fmt.Errorf("field %q: array-object requires arrayItemType", where)
	case def.Type != TypeArrayObject && def.ArrayItemType != nil:
		return def, fmt.Errorf("field %q: arrayItemType is only allowed on array-object fields", where)
	}

	if def.Type == TypeSelect && len(def.Options) == 0 {
		return def, fmt.Errorf("field %q: select requires options", where)
	}

	if def.Dependencies != nil {
		if def.Dependencies.Field == "" {
			return def, fmt.Errorf("field %q: dependency has no field", where)
		}
		if !def.Dependencies.Condition.valid() {
			return def, fmt.Errorf("field %q: unknown dependency condition %q", where, def.Dependencies.Condition.Op)
		}
	}

	if def.Validation != nil && def.Validation.Pattern != "" {
		re, err := regexp.Compile(def.Validation.Pattern)
		if err != nil {
			return def, fmt.Errorf("field %q: invalid pattern: %w", where, err)
		}
		def.pattern = re
	}

	if def.ArrayItemType != nil {
		items := NewFieldSet()
		for _, key := range def.ArrayItemType.Keys() {
			child, _ := def.ArrayItemType.Get(key)
			prepared, err := prepare(child, where+"[]."+key)
			if err != nil {
				return def, err
			}
			if err := items.Add(prepared); err != nil {
				return def, err
			}
		}
		def.ArrayItemType = items
	}

	return def, nil
}

// Lookup finds a definition by exact path.
func (r *Registry) Lookup(path string) (FieldDefinition, bool) {
	return r.fields.Get(path)
}

// Paths lists every registered path in declaration order.
func (r *Registry) Paths() []string {
	return r.fields.Keys()
}

// Fields exposes the ordered definitions for serialization.
func (r *Registry) Fields() *FieldSet {
	return r.fields
}

// Definitions returns a copy of the path to definition mapping.
func (r *Registry) Definitions() map[string]FieldDefinition {
	out := make(map[string]FieldDefinition, r.fields.Len())
	for _, path := range r.fields.Keys() {
		out[path], _ = r.fields.Get(path)
	}
	return out
}

// Source reports which topic source declared path.
func (r *Registry) Source(path string) string {
	return r.origin[path]
}

// Check validates a single value against def.
func (r *Registry) Check(def FieldDefinition, value any) []string {
	return r.checker.check(def, value)
}

// Resolve finds the definition governing path, descending through
// array-object records addressed by index, e.g.
// "sections.faq.items.2.question". itemPrefix is the path of the innermost
// enclosing record, or "" for a top-level field.
func (r *Registry) Resolve(path string) (def FieldDefinition, itemPrefix string, ok bool) {
	segs := nested.Split(path)
	for i := len(segs); i > 0; i-- {
		prefix := strings.Join(segs[:i], ".")
		d, found := r.fields.Get(prefix)
		if !found {
			continue
		}
		if i == len(segs) {
			return d, "", true
		}
		return resolveItem(d, prefix, segs[i:])
	}
	return FieldDefinition{}, "", false
}

func resolveItem(parent FieldDefinition, base string, rest []string) (FieldDefinition, string, bool) {
	if parent.Type != TypeArrayObject || len(rest) < 2 {
		return FieldDefinition{}, "", false
	}
	if _, err := strconv.Atoi(rest[0]); err != nil {
		return FieldDefinition{}, "", false
	}
	prefix := base + "." + rest[0]
	child, ok := parent.ArrayItemType.Get(rest[1])
	if !ok {
		return FieldDefinition{}, "", false
	}
	if len(rest) == 2 {
		return child, prefix, true
	}
	return resolveItem(child, prefix+"."+rest[1], rest[2:])
}

// Issue is a validation message bound to a field path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// Visible reports whether def is shown for doc. itemPrefix is the path of
// the enclosing array-object record, if any; dependency fields are resolved
// against the record first and the document root second.
func Visible(def FieldDefinition, doc map[string]any, itemPrefix string) bool {
	dep := def.Dependencies
	if dep == nil {
		return true
	}
	return dep.Condition.Holds(DependencyValue(doc, itemPrefix, dep.Field))
}

// DependencyValue resolves the value a dependency condition is evaluated
// against.
func DependencyValue(doc map[string]any, itemPrefix, field string) any {
	if itemPrefix != "" {
		if v, ok := nested.Get(doc, itemPrefix+"."+field); ok {
			return v
		}
		if _, inItem := nested.Get(doc, itemPrefix); inItem && !strings.Contains(field, ".") {
			return nil
		}
	}
	v, _ := nested.Get(doc, field)
	return v
}

// ValidateDocument checks every visible registered field of doc, descending
// into array-object records. Hidden fields are skipped.
func (r *Registry) ValidateDocument(doc map[string]any) []Issue {
	var issues []Issue
	for _, path := range r.fields.Keys() {
		def, _ := r.fields.Get(path)
		issues = append(issues, r.validateField(doc, def, path, "")...)
	}
	return issues
}

func (r *Registry) validateField(doc map[string]any, def FieldDefinition, path, itemPrefix string) []Issue {
	if !Visible(def, doc, itemPrefix) {
		return nil
	}

	value, _ := nested.Get(doc, path)

	var issues []Issue
	for _, msg := range r.checker.check(def, value) {
		issues = append(issues, Issue{Path: path, Message: msg})
	}

	if def.Type != TypeArrayObject {
		return issues
	}
	list, ok := value.([]any)
	if !ok {
		return issues
	}
	for i := range list {
		prefix := fmt.Sprintf("%s.%d", path, i)
		for _, key := range def.ArrayItemType.Keys() {
			child, _ := def.ArrayItemType.Get(key)
			issues = append(issues, r.validateField(doc, child, prefix+"."+key, prefix)...)
		}
	}
	return issues
}
