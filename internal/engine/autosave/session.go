// Package autosave keeps an in-memory copy of a record being edited and
// writes it back after the editor has been idle for a while.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	jujuerrors "github.com/juju/errors"
	"github.com/rs/zerolog/log"

	"landr/internal/pkg/nested"
)

const DefaultDelay = 3 * time.Second

// ErrClosed is returned by Edit and SaveNow once the session is closed.
const ErrClosed = jujuerrors.ConstError("autosave session closed")

// SaveFunc persists a snapshot of the document. The snapshot is never
// modified by the session afterwards.
type SaveFunc func(ctx context.Context, doc map[string]any) error

type Config struct {
	Delay time.Duration
	Clock clock.Clock
}

// Session debounces edits to a single record. At most one save runs at a
// time; a save that finds nothing new to write is skipped.
type Session struct {
	delay time.Duration
	clock clock.Clock
	save  SaveFunc

	// saving serializes calls to save.
	saving sync.Mutex

	mu      sync.Mutex
	doc     map[string]any
	version uint64
	saved   uint64
	timer   clock.Timer
	gen     uint64
	err     error
	closed  bool
	onSaved func(doc map[string]any)
	onError func(err error)
	pending sync.WaitGroup
}

func NewSession(cfg Config, initial map[string]any, save SaveFunc) *Session {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if initial == nil {
		initial = map[string]any{}
	}
	return &Session{
		delay: cfg.Delay,
		clock: cfg.Clock,
		save:  save,
		doc:   initial,
	}
}

// OnSaved registers a callback run after every successful save.
func (s *Session) OnSaved(fn func(doc map[string]any)) {
	s.mu.Lock()
	s.onSaved = fn
	s.mu.Unlock()
}

// OnError registers a callback run after every failed save.
func (s *Session) OnError(fn func(err error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Edit sets the value at path and restarts the idle timer. A path that
// addresses a list out of range is rejected and the document is unchanged.
func (s *Session) Edit(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	doc, err := nested.TrySet(s.doc, path, value)
	if err != nil {
		return err
	}
	s.doc = doc
	s.version++
	s.schedule()
	return nil
}

// schedule replaces any pending timer. Callers hold mu.
func (s *Session) schedule() {
	s.stopTimer()
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Session) stopTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.pending.Add(1)
	s.mu.Unlock()

	defer s.pending.Done()
	s.flush(context.Background())
}

// SaveNow cancels the idle timer and saves immediately if anything changed.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopTimer()
	s.mu.Unlock()

	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	s.saving.Lock()
	defer s.saving.Unlock()

	s.mu.Lock()
	if s.version == s.saved {
		s.mu.Unlock()
		return nil
	}
	doc, version := s.doc, s.version
	s.mu.Unlock()

	err := s.save(ctx, doc)

	s.mu.Lock()
	if err != nil {
		s.err = err
		onError := s.onError
		s.mu.Unlock()

		log.Warn().Err(err).Msg("auto-save failed, edits kept locally")
		if onError != nil {
			onError(err)
		}
		return err
	}
	if version > s.saved {
		s.saved = version
	}
	s.err = nil
	onSaved := s.onSaved
	s.mu.Unlock()

	if onSaved != nil {
		onSaved(doc)
	}
	return nil
}

// Doc returns the current local document, including unsaved edits.
func (s *Session) Doc() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Dirty reports whether there are edits not yet written.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.saved
}

// Err returns the last save failure until it is dismissed or a later save
// succeeds.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) DismissError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// Close cancels a pending save and waits for one already running. Unsaved
// edits are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimer()
	s.mu.Unlock()

	s.pending.Wait()
}
