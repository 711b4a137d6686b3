package handlers

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	jujuerrors "github.com/juju/errors"

	"landr/internal/pkg/errors"
	"landr/internal/platform/models"
	"landr/internal/platform/repositories"
)

const defaultLogLimit = 100

type WebhookHandler struct {
	webhooks *repositories.WebhookRepository
	logs     *repositories.WebhookLogRepository
	validate *validator.Validate
	dev      bool
}

func NewWebhookHandler(webhooks *repositories.WebhookRepository, logs *repositories.WebhookLogRepository, dev bool) *WebhookHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &WebhookHandler{
		webhooks: webhooks,
		logs:     logs,
		validate: v,
		dev:      dev,
	}
}

type createWebhookRequest struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
	IsActive *bool    `json:"isActive"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := decodeBody(w, r, &req); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	webhook := &models.WebhookConfig{
		Name:     strings.TrimSpace(req.Name),
		URL:      strings.TrimSpace(req.URL),
		Events:   req.Events,
		Secret:   req.Secret,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := h.validate.Struct(webhook); err != nil {
		errors.Respond(w, invalidWebhook(err), h.dev)
		return
	}

	if err := h.webhooks.Create(webhook); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusCreated, webhook, "Webhook created")
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.webhooks.List()
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, webhooks, "")
}

// Toggle flips IsActive after an explicit existence probe.
func (h *WebhookHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := param(r, "id")

	webhook, err := h.webhooks.GetByID(id)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	webhook.IsActive = !webhook.IsActive
	if err := h.webhooks.SetActive(id, webhook.IsActive); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	updated, err := h.webhooks.GetByID(id)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, updated, "Webhook toggled")
}

// Logs lists delivery attempts, newest first, optionally for one webhook.
func (h *WebhookHandler) Logs(w http.ResponseWriter, r *http.Request) {
	webhookID := r.URL.Query().Get("webhookId")
	if webhookID != "" {
		exists, err := h.webhooks.Exists(webhookID)
		if err != nil {
			errors.Respond(w, err, h.dev)
			return
		}
		if !exists {
			errors.Respond(w, jujuerrors.NotFoundf("webhook %q", webhookID), h.dev)
			return
		}
	}

	logs, err := h.logs.List(webhookID, queryInt(r, "limit", defaultLogLimit))
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	errors.WriteJSON(w, http.StatusOK, logs, "")
}

var indexSegment = regexp.MustCompile(`\[(\d+)\]`)

// invalidWebhook flattens validator errors into "path: message; ..." form.
func invalidWebhook(err error) error {
	fieldErrs, ok := jujuerrors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		path = indexSegment.ReplaceAllString(path, ".$1")

		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "http_url":
			msg = "must be a valid http(s) URL"
		case "min":
			msg = "must list at least one event"
		case "max":
			msg = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "oneof":
			msg = "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
		default:
			msg = fmt.Sprintf("failed the %q rule", fe.Tag())
		}
		msgs = append(msgs, path+": "+msg)
	}
	return jujuerrors.NewNotValid(nil, strings.Join(msgs, "; "))
}
