package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"

	"landr/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, name, url, events, secret, is_active, created_at, updated_at`

func (r *WebhookRepository) Create(webhook *models.WebhookConfig) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	webhook.ID = "wh_" + uuid.New().String()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	webhook.HasSecret = webhook.Secret != ""

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	query := `INSERT INTO webhook_configs (` + webhookColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		webhook.ID,
		webhook.Name,
		webhook.URL,
		string(eventsJSON),
		webhook.Secret,
		webhook.IsActive,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	return err
}

func (r *WebhookRepository) GetByID(id string) (*models.WebhookConfig, error) {
	row := r.db.QueryRow(`SELECT `+webhookColumns+` FROM webhook_configs WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, jujuerrors.NotFoundf("webhook %q", id)
	}
	return w, err
}

func (r *WebhookRepository) Exists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM webhook_configs WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

func (r *WebhookRepository) List() ([]*models.WebhookConfig, error) {
	return r.query(`SELECT ` + webhookColumns + ` FROM webhook_configs ORDER BY created_at DESC, id`)
}

// ListActiveByEvent returns active configs subscribed to event. Events are
// stored as a JSON array, so matching happens after the scan.
func (r *WebhookRepository) ListActiveByEvent(event string) ([]*models.WebhookConfig, error) {
	all, err := r.query(`SELECT ` + webhookColumns + ` FROM webhook_configs WHERE is_active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.WebhookConfig, 0, len(all))
	for _, w := range all {
		if w.Subscribes(event) {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

func (r *WebhookRepository) SetActive(id string, active bool) error {
	_, err := r.db.Exec(`UPDATE webhook_configs SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UnixMilli(), id)
	return err
}

func (r *WebhookRepository) query(query string, args ...any) ([]*models.WebhookConfig, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []*models.WebhookConfig{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWebhook(s scanner) (*models.WebhookConfig, error) {
	var w models.WebhookConfig
	var eventsStr string
	var createdAt, updatedAt int64

	err := s.Scan(&w.ID, &w.Name, &w.URL, &eventsStr, &w.Secret, &w.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, jujuerrors.Annotatef(err, "webhook %s events", w.ID)
	}
	w.HasSecret = w.Secret != ""
	w.CreatedAt = time.UnixMilli(createdAt).UTC()
	w.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &w, nil
}
