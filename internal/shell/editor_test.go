package shell

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/autosave"
	"landr/internal/engine/fields"
	"landr/internal/engine/form"
	"landr/internal/pkg/nested"
)

type saves struct {
	mu   sync.Mutex
	docs []map[string]any
}

func (s *saves) save(_ context.Context, doc map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

func (s *saves) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func newTestEditor(t *testing.T, initial map[string]any) (*Editor, *saves, *bytes.Buffer) {
	t.Helper()
	reg, err := fields.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	rec := &saves{}
	clk := testclock.NewClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	session := autosave.NewSession(autosave.Config{Delay: time.Hour, Clock: clk}, initial, rec.save)
	out := &bytes.Buffer{}
	return NewEditor(session, form.NewRenderer(reg), out), rec, out
}

func TestEditor_SetParsesByFieldType(t *testing.T) {
	e, _, _ := newTestEditor(t, map[string]any{"businessName": "Crumb"})
	ctx := context.Background()

	lines := []string{
		"businessName=Crumb & Co",
		"seo.noIndex=true",
		"businessData.foundedYear=1987",
		"seo.keywords=bread, pastry",
	}
	for _, line := range lines {
		if _, err := e.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error = %v", line, err)
		}
	}

	doc := e.session.Doc()
	want := map[string]any{
		"businessName":             "Crumb & Co",
		"seo.noIndex":              true,
		"businessData.foundedYear": float64(1987),
	}
	for path, v := range want {
		if got, _ := nested.Get(doc, path); got != v {
			t.Errorf("%s = %#v, want %#v", path, got, v)
		}
	}
	if kw, _ := nested.Get(doc, "seo.keywords"); kw == nil {
		t.Errorf("seo.keywords not set")
	}
	if !e.session.Dirty() {
		t.Error("session should be dirty")
	}
}

func TestEditor_Errors(t *testing.T) {
	e, _, _ := newTestEditor(t, nil)
	ctx := context.Background()

	tests := []struct {
		line string
		kind error
	}{
		{"nonsense", jujuerrors.NotValid},
		{"noSuchField=1", jujuerrors.NotFound},
		{":frobnicate", jujuerrors.NotValid},
		{":remove sections.faq.items", jujuerrors.NotValid},
		{":show seo.metaTitle", jujuerrors.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if _, err := e.Exec(ctx, tt.line); !jujuerrors.Is(err, tt.kind) {
				t.Errorf("Exec(%q) error = %v, want %v", tt.line, err, tt.kind)
			}
		})
	}

	if _, err := e.Exec(ctx, "businessData.foundedYear=soon"); err == nil {
		t.Error("expected parse error for non-numeric year")
	}
}

func TestEditor_AppendAndRemoveItems(t *testing.T) {
	e, _, _ := newTestEditor(t, map[string]any{})
	ctx := context.Background()

	for _, line := range []string{":append sections.faq.items", ":append sections.faq.items"} {
		if _, err := e.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error = %v", line, err)
		}
	}
	if _, err := e.Exec(ctx, "sections.faq.items.1.question=Open on Sundays?"); err != nil {
		t.Fatal(err)
	}

	items, _ := nested.Get(e.session.Doc(), "sections.faq.items")
	list, ok := items.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("items = %#v", items)
	}
	if q, _ := nested.Get(e.session.Doc(), "sections.faq.items.1.question"); q != "Open on Sundays?" {
		t.Errorf("question = %#v", q)
	}

	if _, err := e.Exec(ctx, ":remove sections.faq.items 0"); err != nil {
		t.Fatal(err)
	}
	items, _ = nested.Get(e.session.Doc(), "sections.faq.items")
	if list := items.([]any); len(list) != 1 {
		t.Fatalf("after remove items = %#v", list)
	}
	if q, _ := nested.Get(e.session.Doc(), "sections.faq.items.0.question"); q != "Open on Sundays?" {
		t.Errorf("remaining question = %#v", q)
	}
}

func TestEditor_RunSavesAndQuits(t *testing.T) {
	e, rec, out := newTestEditor(t, map[string]any{"businessName": "Crumb"})

	input := strings.Join([]string{
		"# rename",
		":save",
		"businessName=Crumb Bakery",
		":save",
		"businessName=Unsaved",
		":quit",
		"businessName=never applied",
	}, "\n")
	if err := e.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("saves = %d, want 1", rec.count())
	}
	if got := rec.docs[0]["businessName"]; got != "Crumb Bakery" {
		t.Errorf("saved businessName = %#v", got)
	}
	for _, want := range []string{"nothing to save", "discarding unsaved changes"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if err := e.session.Edit("businessName", "x"); !jujuerrors.Is(err, autosave.ErrClosed) {
		t.Errorf("Edit after Run error = %v, want ErrClosed", err)
	}
}

func TestEditor_Check(t *testing.T) {
	e, _, out := newTestEditor(t, map[string]any{
		"templateId":   "crumb",
		"businessName": "Crumb",
		"theme":        map[string]any{"primaryColor": "blue"},
	})
	if _, err := e.Exec(context.Background(), ":check"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "theme.primaryColor: must be a hex color") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEditable(t *testing.T) {
	doc := map[string]any{
		"id":           "p1",
		"businessName": "Crumb",
		"images":       []any{},
		"createdAt":    "2024-06-01T09:00:00Z",
	}
	got := Editable(doc)
	if len(got) != 1 || got["businessName"] != "Crumb" {
		t.Errorf("Editable() = %#v", got)
	}
	if _, ok := doc["id"]; !ok {
		t.Error("Editable modified its input")
	}
}

func TestEditor_RunSavesPendingAtEndOfInput(t *testing.T) {
	e, rec, out := newTestEditor(t, map[string]any{"businessName": "A"})

	if err := e.Run(context.Background(), strings.NewReader("businessName=B\n")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.count() != 1 || rec.docs[0]["businessName"] != "B" {
		t.Fatalf("saves = %#v, want one save with businessName B", rec.docs)
	}
	if !strings.Contains(out.String(), "saving pending changes") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEditor_RunWithoutEditsDoesNotSave(t *testing.T) {
	e, rec, out := newTestEditor(t, map[string]any{"businessName": "A"})

	if err := e.Run(context.Background(), strings.NewReader(":show businessName\n")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("saves = %d, want 0", rec.count())
	}
	if strings.Contains(out.String(), "saving") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEditor_ListIndexOutOfRange(t *testing.T) {
	items := []any{
		map[string]any{"id": "a", "question": "One?", "answer": "1"},
		map[string]any{"id": "b", "question": "Two?", "answer": "2"},
	}
	e, _, _ := newTestEditor(t, map[string]any{
		"sections": map[string]any{"faq": map[string]any{"items": items}},
	})

	for _, line := range []string{
		"sections.faq.items.5.question=x",
		"sections.faq.items.-1.question=x",
	} {
		t.Run(line, func(t *testing.T) {
			if _, err := e.Exec(context.Background(), line); !jujuerrors.Is(err, jujuerrors.NotValid) {
				t.Errorf("Exec(%q) error = %v, want not valid", line, err)
			}
			got, _ := nested.Get(e.session.Doc(), "sections.faq.items")
			if list, ok := got.([]any); !ok || len(list) != 2 {
				t.Errorf("items = %#v, want the two original records", got)
			}
		})
	}
	if e.session.Dirty() {
		t.Error("rejected edits marked the session dirty")
	}
}
