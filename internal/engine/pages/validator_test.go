package pages

import (
	"errors"
	"testing"

	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/fields"
)

func TestValidator_StructIssuesWinOverRegistry(t *testing.T) {
	reg, err := fields.LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator(reg)

	p := &LandingPage{Status: StatusDraft}
	p.normalize()

	err = v.Check(p)
	verr, ok := jujuerrors.AsType[*ValidationError](err)
	if !ok {
		t.Fatalf("Check() error = %v, want *ValidationError", err)
	}

	counts := map[string]int{}
	for _, is := range verr.Issues {
		counts[is.Path]++
	}
	for _, path := range []string{"templateId", "businessName"} {
		if counts[path] != 1 {
			t.Errorf("%s reported %d times, want once", path, counts[path])
		}
	}
	if !errors.Is(err, jujuerrors.NotValid) {
		t.Error("ValidationError does not match NotValid")
	}
}

func TestValidator_CheckImage(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name string
		img  Image
		want []string
	}{
		{"valid", Image{SlotName: "hero", ImageURL: "https://e/x.png"}, nil},
		{"missing slot", Image{ImageURL: "https://e/x.png"}, []string{"slotName: is required"}},
		{"bad url", Image{SlotName: "hero", ImageURL: "x"}, []string{"imageUrl: must be a valid URL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckImage(&tt.img)
			if tt.want == nil {
				if err != nil {
					t.Errorf("CheckImage() error = %v", err)
				}
				return
			}
			verr, ok := jujuerrors.AsType[*ValidationError](err)
			if !ok {
				t.Fatalf("CheckImage() error = %v", err)
			}
			if len(verr.Issues) != len(tt.want) {
				t.Fatalf("issues = %v, want %v", verr.Issues, tt.want)
			}
			for i, is := range verr.Issues {
				if is.String() != tt.want[i] {
					t.Errorf("issue %d = %q, want %q", i, is, tt.want[i])
				}
			}
		})
	}
}

func TestFieldPath(t *testing.T) {
	tests := map[string]string{
		"LandingPage.templateId":          "templateId",
		"LandingPage.images[0].slotName":  "images.0.slotName",
		"LandingPage.socialLinks[12].url": "socialLinks.12.url",
		"Image.imageUrl":                  "imageUrl",
	}
	for in, want := range tests {
		if got := fieldPath(in); got != want {
			t.Errorf("fieldPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromDocument_TypeMismatch(t *testing.T) {
	_, err := fromDocument(map[string]any{"seo": map[string]any{"noIndex": "yes"}})
	if err == nil || err.Error() != "seo.noIndex: must be true or false, got string" {
		t.Errorf("fromDocument() error = %v", err)
	}
}
