package pages

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type LandingPage struct {
	ID              string          `json:"id"`
	TemplateID      string          `json:"templateId" validate:"required,max=100"`
	GithubURL       string          `json:"githubUrl,omitempty" validate:"omitempty,url"`
	BusinessName    string          `json:"businessName" validate:"required,max=200"`
	Status          string          `json:"status" validate:"oneof=draft published archived"`
	PublishedAt     *time.Time      `json:"publishedAt"`
	SEO             SEO             `json:"seo"`
	Theme           Theme           `json:"theme"`
	BusinessData    BusinessData    `json:"businessData"`
	BusinessContact BusinessContact `json:"businessContact"`
	Sections        Sections        `json:"sections"`
	ServiceAreas    StringList      `json:"serviceAreas"`
	SocialLinks     SocialLinks     `json:"socialLinks" validate:"dive"`
	Images          []*Image        `json:"images" validate:"dive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Image struct {
	ID            string    `json:"id"`
	LandingPageID string    `json:"landingPageId"`
	SlotName      string    `json:"slotName" validate:"required,max=100"`
	Title         string    `json:"title"`
	AltText       string    `json:"altText"`
	ImageURL      string    `json:"imageUrl" validate:"required,url"`
	Category      string    `json:"category"`
	CreatedAt     time.Time `json:"createdAt"`
}

type SEO struct {
	MetaTitle       string     `json:"metaTitle,omitempty"`
	MetaDescription string     `json:"metaDescription,omitempty"`
	Keywords        StringList `json:"keywords"`
	OGImage         string     `json:"ogImage,omitempty"`
	CanonicalURL    string     `json:"canonicalUrl,omitempty"`
	NoIndex         bool       `json:"noIndex"`
	StructuredData  any        `json:"structuredData,omitempty"`
}

type Theme struct {
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	AccentColor    string `json:"accentColor,omitempty"`
	FontFamily     string `json:"fontFamily,omitempty"`
	DarkMode       bool   `json:"darkMode"`
	LogoURL        string `json:"logoUrl,omitempty"`
	FaviconURL     string `json:"faviconUrl,omitempty"`
}

type BusinessData struct {
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Website     string   `json:"website,omitempty"`
	Address     Address  `json:"address"`
	FoundedYear *float64 `json:"foundedYear,omitempty"`
	OpeningDate string   `json:"openingDate,omitempty"`
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type BusinessContact struct {
	BusinessHours []BusinessHours `json:"businessHours"`
	ShowMap       bool            `json:"showMap"`
	MapEmbedURL   string          `json:"mapEmbedUrl,omitempty"`
	WhatsApp      string          `json:"whatsapp,omitempty"`
}

type BusinessHours struct {
	ID     string `json:"id,omitempty"`
	Day    string `json:"day"`
	Closed bool   `json:"closed"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

type Sections struct {
	Hero         Hero         `json:"hero"`
	About        About        `json:"about"`
	Services     Services     `json:"services"`
	Testimonials Testimonials `json:"testimonials"`
	FAQ          FAQ          `json:"faq"`
	Contact      Contact      `json:"contact"`
	Footer       Footer       `json:"footer"`
}

type Hero struct {
	Headline        string `json:"headline,omitempty"`
	Subheadline     string `json:"subheadline,omitempty"`
	CTAText         string `json:"ctaText,omitempty"`
	CTAURL          string `json:"ctaUrl,omitempty"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
}

type About struct {
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body,omitempty"`
	Image      string     `json:"image,omitempty"`
	Highlights StringList `json:"highlights"`
}

type Services struct {
	Title string        `json:"title,omitempty"`
	Items []ServiceItem `json:"items"`
}

type ServiceItem struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Featured    bool     `json:"featured"`
	Badge       string   `json:"badge,omitempty"`
}

type Testimonials struct {
	Enabled bool          `json:"enabled"`
	Items   []Testimonial `json:"items"`
}

type Testimonial struct {
	ID     string   `json:"id,omitempty"`
	Author string   `json:"author"`
	Role   string   `json:"role,omitempty"`
	Quote  string   `json:"quote"`
	Rating *float64 `json:"rating,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
}

type FAQ struct {
	Items []FAQItem `json:"items"`
}

type FAQItem struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Contact struct {
	Title          string     `json:"title,omitempty"`
	FormEnabled    bool       `json:"formEnabled"`
	RecipientEmail string     `json:"recipientEmail,omitempty"`
	Fields         StringList `json:"fields"`
}

type Footer struct {
	Copyright string       `json:"copyright,omitempty"`
	Links     []FooterLink `json:"links"`
}

type FooterLink struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type SocialLink struct {
	ID       string `json:"id,omitempty"`
	Platform string `json:"platform" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
}

// StringList is stored as a JSON array.
type StringList []string

type SocialLinks []SocialLink

// jsonValue and scanJSON back the driver.Valuer and sql.Scanner
// implementations of every JSON column.
func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(value any, dest any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dest)
}

func (s SEO) Value() (driver.Value, error) { return jsonValue(s) }
func (s *SEO) Scan(value any) error { return scanJSON(value, s) }
func (t Theme) Value() (driver.Value, error) { return jsonValue(t) }
func (t *Theme) Scan(value any) error { return scanJSON(value, t) }

func (b BusinessData) Value() (driver.Value, error) { return jsonValue(b) }
func (b *BusinessData) Scan(value any) error { return scanJSON(value, b) }

func (b BusinessContact) Value() (driver.Value, error) { return jsonValue(b) }
func (b *BusinessContact) Scan(value any) error { return scanJSON(value, b) }

func (s Sections) Value() (driver.Value, error) { return jsonValue(s) }
func (s *Sections) Scan(value any) error { return scanJSON(value, s) }

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]string(l))
}

func (l *StringList) Scan(value any) error { return scanJSON(value, (*[]string)(l)) }

func (l SocialLinks) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]SocialLink(l))
}

func (l *SocialLinks) Scan(value any) error { return scanJSON(value, (*[]SocialLink)(l)) }

// Document renders the page as the generic tree the registry, the form
// renderer and partial updates work on. Server-managed fields are omitted.
func (p *LandingPage) Document() (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	for _, k := range serverManaged {
		delete(doc, k)
	}
	return doc, nil
}

var serverManaged = []string{"id", "createdAt", "updatedAt", "publishedAt"}

// fromDocument decodes a page document. Decoding errors are reported per
// field path where the JSON decoder names one.
func fromDocument(doc map[string]any) (*LandingPage, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var p LandingPage
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, decodeError(err)
	}
	return &p, nil
}

// normalize replaces nil lists with empty ones so they serialize as [].
func (p *LandingPage) normalize() {
	if p.ServiceAreas == nil {
		p.ServiceAreas = StringList{}
	}
	if p.SocialLinks == nil {
		p.SocialLinks = SocialLinks{}
	}
	if p.Images == nil {
		p.Images = []*Image{}
	}
	if p.SEO.Keywords == nil {
		p.SEO.Keywords = StringList{}
	}
	if p.BusinessContact.BusinessHours == nil {
		p.BusinessContact.BusinessHours = []BusinessHours{}
	}
	s := &p.Sections
	if s.About.Highlights == nil {
		s.About.Highlights = StringList{}
	}
	if s.Services.Items == nil {
		s.Services.Items = []ServiceItem{}
	}
	if s.Testimonials.Items == nil {
		s.Testimonials.Items = []Testimonial{}
	}
	if s.FAQ.Items == nil {
		s.FAQ.Items = []FAQItem{}
	}
	if s.Contact.Fields == nil {
		s.Contact.Fields = StringList{}
	}
	if s.Footer.Links == nil {
		s.Footer.Links = []FooterLink{}
	}
}
