package pages

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/fields"
)

// ValidationError lists every rule a page violated. It satisfies
// errors.Is(err, errors.NotValid).
type ValidationError struct {
	Issues []fields.Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == jujuerrors.NotValid
}

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Issues: []fields.Issue{{Path: path, Message: fmt.Sprintf(format, args...)}}}
}

// Validator checks pages structurally with struct tags and against the
// field registry's document rules.
type Validator struct {
	validate *validator.Validate
	registry *fields.Registry
}

func NewValidator(registry *fields.Registry) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, registry: registry}
}

// CheckImage applies the struct rules for a single image.
func (v *Validator) CheckImage(img *Image) error {
	err := v.validate.Struct(img)
	if err == nil {
		return nil
	}
	fieldErrs, ok := jujuerrors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Issues = append(verr.Issues, fields.Issue{Path: fieldPath(fe.Namespace()), Message: tagMessage(fe)})
	}
	return verr
}

var indexSegment = regexp.MustCompile(`\[(\d+)\]`)

// Check returns nil or a *ValidationError. Struct rule failures are reported
// first; registry issues are added for paths the struct rules did not flag.
func (v *Validator) Check(p *LandingPage) error {
	var issues []fields.Issue
	seen := map[string]bool{}

	if err := v.validate.Struct(p); err != nil {
		fieldErrs, ok := jujuerrors.AsType[validator.ValidationErrors](err)
		if !ok {
			return err
		}
		for _, fe := range fieldErrs {
			path := fieldPath(fe.Namespace())
			seen[path] = true
			issues = append(issues, fields.Issue{Path: path, Message: tagMessage(fe)})
		}
	}

	if v.registry != nil {
		doc, err := p.Document()
		if err != nil {
			return err
		}
		for _, is := range v.registry.ValidateDocument(doc) {
			if !seen[is.Path] {
				seen[is.Path] = true
				issues = append(issues, is)
			}
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// fieldPath turns "LandingPage.images[0].slotName" into "images.0.slotName".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return indexSegment.ReplaceAllString(namespace, ".$1")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

func decodeError(err error) error {
	if typeErr, ok := jujuerrors.AsType[*json.UnmarshalTypeError](err); ok {
		path := typeErr.Field
		if path == "" {
			path = "body"
		}
		return invalid(path, "must be %s, got %s", kindName(typeErr.Type), typeErr.Value)
	}
	return invalid("body", "%v", err)
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "true or false"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "a list"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Pointer:
		return kindName(t.Elem())
	}
	return t.String()
}
