package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	jujuerrors "github.com/juju/errors"
)

const waitTimeout = 2 * time.Second

type recorder struct {
	mu    sync.Mutex
	saves []map[string]any
	fail  error
	done  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 16)}
}

func (r *recorder) save(ctx context.Context, doc map[string]any) error {
	r.mu.Lock()
	defer func() {
		r.mu.Unlock()
		r.done <- struct{}{}
	}()
	if r.fail != nil {
		return r.fail
	}
	r.saves = append(r.saves, doc)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recorder) waitSave(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for save")
	}
}

func (r *recorder) expectNoSave(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
		t.Fatal("unexpected save")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_DebouncesBurstIntoOneSave(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := newRecorder()
	s := NewSession(Config{Delay: 3 * time.Second, Clock: clk}, map[string]any{"businessName": "A"}, rec.save)
	defer s.Close()

	for i, name := range []string{"B", "C", "D"} {
		if i > 0 {
			clk.Advance(time.Second)
		}
		if err := s.Edit("businessName", name); err != nil {
			t.Fatal(err)
		}
	}

	// t=2s: last edit. Nothing may fire before t=5s.
	clk.Advance(2 * time.Second)
	rec.expectNoSave(t)

	clk.Advance(time.Second)
	rec.waitSave(t)
	rec.expectNoSave(t)

	if rec.count() != 1 {
		t.Fatalf("saves = %d, want 1", rec.count())
	}
	if got := rec.saves[0]["businessName"]; got != "D" {
		t.Errorf("saved businessName = %v, want D", got)
	}
	if s.Dirty() {
		t.Error("session still dirty after save")
	}
}

func TestSession_SaveNowCancelsTimer(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	rec := newRecorder()
	s := NewSession(Config{Delay: time.Second, Clock: clk}, nil, rec.save)
	defer s.Close()

	s.Edit("seo.metaTitle", "Hello")
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec.waitSave(t)

	clk.Advance(time.Minute)
	rec.expectNoSave(t)

	if got := rec.saves[0]; got["seo"].(map[string]any)["metaTitle"] != "Hello" {
		t.Errorf("saved doc = %v", got)
	}
}

func TestSession_SaveNowWithoutEditsIsNoop(t *testing.T) {
	rec := newRecorder()
	s := NewSession(Config{Clock: testclock.NewClock(time.Now())}, nil, rec.save)
	defer s.Close()

	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec.expectNoSave(t)
}

func TestSession_FailureKeepsEdits(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	rec := newRecorder()
	rec.fail = errors.New("network down")

	s := NewSession(Config{Delay: time.Second, Clock: clk}, map[string]any{}, rec.save)
	defer s.Close()

	var reported error
	s.OnError(func(err error) { reported = err })

	s.Edit("businessName", "Kept")
	err := s.SaveNow(context.Background())
	rec.waitSave(t)

	if err == nil || s.Err() == nil || reported == nil {
		t.Fatalf("error not surfaced: ret=%v Err()=%v callback=%v", err, s.Err(), reported)
	}
	if !s.Dirty() || s.Doc()["businessName"] != "Kept" {
		t.Error("local edits lost after failed save")
	}

	s.DismissError()
	if s.Err() != nil {
		t.Error("DismissError did not clear the error")
	}

	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()

	var saved map[string]any
	s.OnSaved(func(doc map[string]any) { saved = doc })
	if err := s.SaveNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec.waitSave(t)
	if saved["businessName"] != "Kept" || s.Dirty() {
		t.Errorf("retry saved %v, dirty=%v", saved, s.Dirty())
	}
}

func TestSession_SavesAreSerialized(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	active, peak, calls := 0, 0, 0

	save := func(ctx context.Context, doc map[string]any) error {
		mu.Lock()
		active++
		calls++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		<-release

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	s := NewSession(Config{Clock: testclock.NewClock(time.Now())}, nil, save)
	defer s.Close()

	s.Edit("a", 1.0)
	first := make(chan error, 1)
	go func() { first <- s.SaveNow(context.Background()) }()

	// Wait until the first save is running.
	deadline := time.Now().Add(waitTimeout)
	for {
		mu.Lock()
		started := calls == 1
		mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first save never started")
		}
		time.Sleep(time.Millisecond)
	}

	s.Edit("a", 2.0)
	second := make(chan error, 1)
	go func() { second <- s.SaveNow(context.Background()) }()

	close(release)
	for _, ch := range []chan error{first, second} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatal(err)
			}
		case <-time.After(waitTimeout):
			t.Fatal("save did not finish")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrent saves = %d, want 1", peak)
	}
	if calls != 2 {
		t.Errorf("save calls = %d, want 2", calls)
	}
}

func TestSession_CloseDropsPendingSave(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	rec := newRecorder()
	s := NewSession(Config{Delay: time.Second, Clock: clk}, nil, rec.save)

	s.Edit("businessName", "X")
	s.Close()
	clk.Advance(time.Minute)
	rec.expectNoSave(t)

	if err := s.Edit("businessName", "Y"); !errors.Is(err, ErrClosed) {
		t.Errorf("Edit after Close error = %v", err)
	}
}

func TestSession_EditRejectsBadListIndex(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := newRecorder()
	initial := map[string]any{"serviceAreas": []any{"North", "South"}}
	s := NewSession(Config{Delay: time.Second, Clock: clk}, initial, rec.save)
	defer s.Close()

	if err := s.Edit("serviceAreas.4", "East"); !jujuerrors.Is(err, jujuerrors.NotValid) {
		t.Fatalf("Edit() error = %v, want not valid", err)
	}
	if s.Dirty() {
		t.Error("rejected edit marked the session dirty")
	}
	if areas := s.Doc()["serviceAreas"].([]any); len(areas) != 2 {
		t.Errorf("serviceAreas = %#v", areas)
	}

	clk.Advance(2 * time.Second)
	rec.expectNoSave(t)
}
