package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"landr/internal/platform/models"
)

// WebhookLogRepository is append-only: there is no update or delete.
type WebhookLogRepository struct {
	db *sql.DB
}

func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

const webhookLogColumns = `id, webhook_id, event, template_id, github_url, payload,
	status, status_code, error_message, retry_count, sent_at`

func (r *WebhookLogRepository) Create(l *models.WebhookLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	query := `INSERT INTO webhook_logs (` + webhookLogColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		l.ID,
		l.WebhookID,
		l.Event,
		l.TemplateID,
		l.GithubURL,
		string(l.Payload),
		l.Status,
		l.StatusCode,
		l.ErrorMessage,
		l.RetryCount,
		l.SentAt.UnixMilli(),
	)
	return err
}

// List returns the newest rows first. An empty webhookID lists every
// subscriber's rows; limit <= 0 means no limit.
func (r *WebhookLogRepository) List(webhookID string, limit int) ([]*models.WebhookLog, error) {
	query := `SELECT ` + webhookLogColumns + ` FROM webhook_logs`
	var args []any
	if webhookID != "" {
		query += ` WHERE webhook_id = ?`
		args = append(args, webhookID)
	}
	if limit <= 0 {
		limit = -1
	}
	query += ` ORDER BY sent_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.WebhookLog{}
	for rows.Next() {
		var l models.WebhookLog
		var payload string
		var sentAt int64
		if err := rows.Scan(&l.ID, &l.WebhookID, &l.Event, &l.TemplateID, &l.GithubURL, &payload,
			&l.Status, &l.StatusCode, &l.ErrorMessage, &l.RetryCount, &sentAt); err != nil {
			return nil, err
		}
		if payload == "" {
			payload = "null"
		}
		l.Payload = []byte(payload)
		l.SentAt = time.UnixMilli(sentAt).UTC()
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
