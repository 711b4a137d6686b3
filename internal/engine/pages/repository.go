package pages

import (
	"database/sql"
	"strings"
	"time"

	jujuerrors "github.com/juju/errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List. Search matches business name, template id and
// SEO title, case-insensitively.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

const pageColumns = `id, template_id, github_url, business_name, status, published_at,
	seo, theme, business_data, business_contact, sections, service_areas, social_links,
	created_at, updated_at`

const imageColumns = `id, landing_page_id, slot_name, title, alt_text, image_url, category, created_at`

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r *Repository) Create(p *LandingPage) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO landing_pages (` + pageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		p.ID,
		p.TemplateID,
		p.GithubURL,
		p.BusinessName,
		p.Status,
		nullableMillis(p.PublishedAt),
		p.SEO,
		p.Theme,
		p.BusinessData,
		p.BusinessContact,
		p.Sections,
		p.ServiceAreas,
		p.SocialLinks,
		millis(p.CreatedAt),
		millis(p.UpdatedAt),
	)
	if err != nil {
		return jujuerrors.Annotate(err, "insert landing page")
	}

	for _, img := range p.Images {
		if err := insertImage(tx, img); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetByID(id string) (*LandingPage, error) {
	row := r.db.QueryRow(`SELECT `+pageColumns+` FROM landing_pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, jujuerrors.NotFoundf("landing page %q", id)
	}
	if err != nil {
		return nil, err
	}

	p.Images, err = r.ListImages(id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) Exists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM landing_pages WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

// ExistsByTemplateID reports whether another page already uses templateID.
func (r *Repository) ExistsByTemplateID(templateID, excludeID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM landing_pages WHERE template_id = ? AND id <> ?)"
	err := r.db.QueryRow(query, templateID, excludeID).Scan(&exists)
	return exists, err
}

// List returns one page of results ordered by most recent update, plus the
// total number of matching rows.
func (r *Repository) List(f ListFilter) ([]*LandingPage, int, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, `(LOWER(business_name) LIKE ? OR LOWER(template_id) LIKE ?
			OR LOWER(COALESCE(json_extract(seo, '$.metaTitle'), '')) LIKE ?)`)
		args = append(args, like, like, like)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM landing_pages"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + pageColumns + ` FROM landing_pages` + clause + `
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pages := []*LandingPage{}
	byID := map[string]*LandingPage{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, 0, err
		}
		p.Images = []*Image{}
		pages = append(pages, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachImages(byID); err != nil {
		return nil, 0, err
	}
	return pages, total, nil
}

func (r *Repository) attachImages(byID map[string]*LandingPage) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := r.db.Query(`SELECT `+imageColumns+` FROM images
		WHERE landing_page_id IN (`+placeholders+`) ORDER BY created_at, id`, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return err
		}
		if p := byID[img.LandingPageID]; p != nil {
			p.Images = append(p.Images, img)
		}
	}
	return rows.Err()
}

// Update rewrites the page row. Images are managed separately.
func (r *Repository) Update(p *LandingPage) error {
	query := `
		UPDATE landing_pages SET
			template_id = ?, github_url = ?, business_name = ?, status = ?, published_at = ?,
			seo = ?, theme = ?, business_data = ?, business_contact = ?, sections = ?,
			service_areas = ?, social_links = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		p.TemplateID,
		p.GithubURL,
		p.BusinessName,
		p.Status,
		nullableMillis(p.PublishedAt),
		p.SEO,
		p.Theme,
		p.BusinessData,
		p.BusinessContact,
		p.Sections,
		p.ServiceAreas,
		p.SocialLinks,
		millis(p.UpdatedAt),
		p.ID,
	)
	return err
}

func (r *Repository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM images WHERE landing_page_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM landing_pages WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ListImages(pageID string) ([]*Image, error) {
	rows, err := r.db.Query(`SELECT `+imageColumns+` FROM images
		WHERE landing_page_id = ? ORDER BY created_at, id`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []*Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *Repository) AddImage(img *Image) error {
	return insertImage(r.db, img)
}

func (r *Repository) ImageExists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM images WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

func (r *Repository) DeleteImage(id string) error {
	_, err := r.db.Exec("DELETE FROM images WHERE id = ?", id)
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertImage(db execer, img *Image) error {
	query := `INSERT INTO images (` + imageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(query,
		img.ID,
		img.LandingPageID,
		img.SlotName,
		img.Title,
		img.AltText,
		img.ImageURL,
		img.Category,
		millis(img.CreatedAt),
	)
	if err != nil {
		return jujuerrors.Annotatef(err, "insert image %q", img.SlotName)
	}
	return nil
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return millis(*t)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*LandingPage, error) {
	var p LandingPage
	var publishedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(
		&p.ID,
		&p.TemplateID,
		&p.GithubURL,
		&p.BusinessName,
		&p.Status,
		&publishedAt,
		&p.SEO,
		&p.Theme,
		&p.BusinessData,
		&p.BusinessContact,
		&p.Sections,
		&p.ServiceAreas,
		&p.SocialLinks,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := fromMillis(publishedAt.Int64)
		p.PublishedAt = &t
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.normalize()

	return &p, nil
}

func scanImage(s scanner) (*Image, error) {
	var img Image
	var createdAt int64
	err := s.Scan(
		&img.ID,
		&img.LandingPageID,
		&img.SlotName,
		&img.Title,
		&img.AltText,
		&img.ImageURL,
		&img.Category,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	img.CreatedAt = fromMillis(createdAt)
	return &img, nil
}
