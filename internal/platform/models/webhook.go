package models

import (
	"encoding/json"
	"time"
)

// WebhookConfig is a subscriber registered by an operator. Only IsActive
// changes after creation.
type WebhookConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,max=100"`
	URL       string    `json:"url" validate:"required,http_url"`
	Events    []string  `json:"events" validate:"required,min=1,dive,oneof=created updated"`
	Secret    string    `json:"-"`
	HasSecret bool      `json:"hasSecret"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subscribes reports whether the config listens for event.
func (w *WebhookConfig) Subscribes(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// WebhookLog records one delivery attempt. Rows are never updated.
type WebhookLog struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhookId"`
	Event        string          `json:"event"`
	TemplateID   string          `json:"templateId"`
	GithubURL    string          `json:"githubUrl"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	StatusCode   int             `json:"statusCode"`
	ErrorMessage string          `json:"errorMessage"`
	RetryCount   int             `json:"retryCount"`
	SentAt       time.Time       `json:"sentAt"`
}
