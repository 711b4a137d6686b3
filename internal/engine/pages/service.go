package pages

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	jujuerrors "github.com/juju/errors"
	"github.com/rs/zerolog/log"

	"landr/internal/engine/fields"
	"landr/internal/engine/webhooks"
	"landr/internal/pkg/nested"
)

// Notifier is told about committed page mutations. It has no error channel
// back to the caller.
type Notifier interface {
	Trigger(event webhooks.Event, target webhooks.Target) *webhooks.Task
}

type Service struct {
	repo      *Repository
	registry  *fields.Registry
	validator *Validator
	notifier  Notifier
	clock     clock.Clock
}

func NewService(repo *Repository, registry *fields.Registry, notifier Notifier, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		validator: NewValidator(registry),
		notifier:  notifier,
		clock:     clk,
	}
}

func (s *Service) Registry() *fields.Registry {
	return s.registry
}

// Create builds a page from a request document, validates it, stores it with
// its images and announces it to webhook subscribers.
func (s *Service) Create(doc map[string]any) (*LandingPage, error) {
	for _, k := range serverManaged {
		doc = nested.Delete(doc, k)
	}
	doc = s.applyDefaults(doc)

	p, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	p.normalize()

	if err := s.validator.Check(p); err != nil {
		return nil, err
	}
	if err := s.checkTemplateID(p.TemplateID, ""); err != nil {
		return nil, err
	}

	now := s.now()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == StatusPublished {
		p.PublishedAt = &now
	}
	for _, img := range p.Images {
		s.prepareImage(img, p.ID, now)
	}

	if err := s.repo.Create(p); err != nil {
		return nil, err
	}

	log.Info().Str("id", p.ID).Str("template_id", p.TemplateID).Msg("landing page created")
	s.notify(webhooks.EventCreated, p)
	return p, nil
}

func (s *Service) Get(id string) (*LandingPage, error) {
	return s.repo.GetByID(id)
}

func (s *Service) List(f ListFilter) ([]*LandingPage, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, jujuerrors.NotValidf("status %q", f.Status)
	}
	return s.repo.List(f)
}

// Update merges patch into the stored page leaf by leaf. Lists in the patch
// replace the stored list; images are not touched.
func (s *Service) Update(id string, patch map[string]any) (*LandingPage, error) {
	existing, merged, err := s.merge(id, patch)
	if err != nil {
		return nil, err
	}

	p, err := fromDocument(merged)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.Images = existing.Images
	p.PublishedAt = existing.PublishedAt
	p.normalize()

	if err := s.validator.Check(p); err != nil {
		return nil, err
	}
	if err := s.checkTemplateID(p.TemplateID, p.ID); err != nil {
		return nil, err
	}

	now := s.now()
	switch p.Status {
	case StatusPublished:
		if existing.Status != StatusPublished || p.PublishedAt == nil {
			p.PublishedAt = &now
		}
	case StatusDraft:
		p.PublishedAt = nil
	}
	p.UpdatedAt = now

	if err := s.repo.Update(p); err != nil {
		return nil, err
	}

	log.Info().Str("id", p.ID).Str("status", p.Status).Msg("landing page updated")
	s.notify(webhooks.EventUpdated, p)
	return p, nil
}

// CheckDraft reports the issues patch would cause without saving anything.
func (s *Service) CheckDraft(id string, patch map[string]any) ([]fields.Issue, error) {
	existing, merged, err := s.merge(id, patch)
	if err != nil {
		return nil, err
	}

	p, err := fromDocument(merged)
	if err != nil {
		if verr, ok := jujuerrors.AsType[*ValidationError](err); ok {
			return verr.Issues, nil
		}
		return nil, err
	}
	p.ID = existing.ID
	p.Images = existing.Images
	p.normalize()

	if err := s.validator.Check(p); err != nil {
		verr, ok := jujuerrors.AsType[*ValidationError](err)
		if !ok {
			return nil, err
		}
		return verr.Issues, nil
	}
	return []fields.Issue{}, nil
}

func (s *Service) merge(id string, patch map[string]any) (*LandingPage, map[string]any, error) {
	exists, err := s.repo.Exists(id)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, jujuerrors.NotFoundf("landing page %q", id)
	}

	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := existing.Document()
	if err != nil {
		return nil, nil, err
	}

	for _, k := range append(serverManaged, "images") {
		patch = nested.Delete(patch, k)
	}
	return existing, s.applyDefaults(nested.Merge(doc, patch)), nil
}

func (s *Service) Publish(id string) (*LandingPage, error) {
	return s.Update(id, map[string]any{"status": StatusPublished})
}

func (s *Service) Unpublish(id string) (*LandingPage, error) {
	return s.Update(id, map[string]any{"status": StatusDraft})
}

func (s *Service) Archive(id string) (*LandingPage, error) {
	return s.Update(id, map[string]any{"status": StatusArchived})
}

func (s *Service) Delete(id string) error {
	exists, err := s.repo.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return jujuerrors.NotFoundf("landing page %q", id)
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	log.Info().Str("id", id).Msg("landing page deleted")
	return nil
}

func (s *Service) ListImages(pageID string) ([]*Image, error) {
	if err := s.probe(pageID); err != nil {
		return nil, err
	}
	return s.repo.ListImages(pageID)
}

func (s *Service) AddImage(pageID string, img *Image) (*Image, error) {
	if err := s.probe(pageID); err != nil {
		return nil, err
	}

	if err := s.validator.CheckImage(img); err != nil {
		return nil, err
	}

	s.prepareImage(img, pageID, s.now())
	if err := s.repo.AddImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Service) DeleteImage(imageID string) error {
	exists, err := s.repo.ImageExists(imageID)
	if err != nil {
		return err
	}
	if !exists {
		return jujuerrors.NotFoundf("image %q", imageID)
	}
	return s.repo.DeleteImage(imageID)
}

func (s *Service) probe(pageID string) error {
	exists, err := s.repo.Exists(pageID)
	if err != nil {
		return err
	}
	if !exists {
		return jujuerrors.NotFoundf("landing page %q", pageID)
	}
	return nil
}

func (s *Service) checkTemplateID(templateID, excludeID string) error {
	taken, err := s.repo.ExistsByTemplateID(templateID, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return jujuerrors.AlreadyExistsf("landing page with templateId %q", templateID)
	}
	return nil
}

func (s *Service) prepareImage(img *Image, pageID string, now time.Time) {
	img.ID = uuid.New().String()
	img.LandingPageID = pageID
	img.CreatedAt = now
	if strings.TrimSpace(img.Category) == "" {
		img.Category = "general"
	}
}

// applyDefaults fills registry-declared defaults for paths missing from doc.
func (s *Service) applyDefaults(doc map[string]any) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}
	if s.registry == nil {
		return doc
	}
	for _, path := range s.registry.Paths() {
		def, _ := s.registry.Lookup(path)
		if def.Validation == nil || def.Validation.Default == nil {
			continue
		}
		if _, ok := nested.Get(doc, path); !ok {
			doc = nested.Set(doc, path, def.Validation.Default)
		}
	}
	return doc
}

func (s *Service) notify(event webhooks.Event, p *LandingPage) {
	if s.notifier == nil {
		return
	}
	s.notifier.Trigger(event, webhooks.Target{TemplateID: p.TemplateID, GithubURL: p.GithubURL})
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func validStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}
