package pages

import (
	"net/url"
	"strings"

	jujuerrors "github.com/juju/errors"
	"github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize = 512
	MinQRSize     = 128
	MaxQRSize     = 2048
)

// PublicURL is the address a page is served from once deployed.
func PublicURL(baseURL, templateID string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(templateID)
}

// GenerateQRCode encodes content as a PNG of size pixels. Zero selects the
// default size.
func GenerateQRCode(content string, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultQRSize
	}
	if size < MinQRSize || size > MaxQRSize {
		return nil, jujuerrors.NotValidf("size %d: must be between %d and %d", size, MinQRSize, MaxQRSize)
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}

// QRCode renders the public URL of page id.
func (s *Service) QRCode(id, baseURL string, size int) ([]byte, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return GenerateQRCode(PublicURL(baseURL, p.TemplateID), size)
}
