package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"

	"landr/internal/platform/config"
	"landr/internal/platform/models"
)

// Subscribers yields the configs to notify for an event, fetched fresh on
// every dispatch.
type Subscribers interface {
	ListActiveByEvent(event string) ([]*models.WebhookConfig, error)
}

// LogWriter persists one row per delivery attempt.
type LogWriter interface {
	Create(l *models.WebhookLog) error
}

// DeliveryObserver is told about every finished delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(event, status string, elapsed time.Duration)
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	WebhookID    string `json:"webhookId"`
	LogID        string `json:"logId"`
	Status       string `json:"status"`
	StatusCode   int    `json:"statusCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type Dispatcher struct {
	subscribers Subscribers
	logs        LogWriter
	client      *http.Client
	clock       clock.Clock
	observer    DeliveryObserver

	timeout          time.Duration
	userAgent        string
	maxResponseBytes int64

	inflight conc.WaitGroup
}

func NewDispatcher(subscribers Subscribers, logs LogWriter, cfg config.WebhooksConfig, clk clock.Clock) *Dispatcher {
	if clk == nil {
		clk = clock.WallClock
	}
	d := &Dispatcher{
		subscribers:      subscribers,
		logs:             logs,
		client:           &http.Client{},
		clock:            clk,
		timeout:          cfg.Timeout,
		userAgent:        cfg.UserAgent,
		maxResponseBytes: cfg.MaxResponseBytes,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.userAgent == "" {
		d.userAgent = "landr-webhooks/1.0"
	}
	if d.maxResponseBytes <= 0 {
		d.maxResponseBytes = 4096
	}
	return d
}

// Observe registers o for delivery metrics. It must be called before the
// first dispatch.
func (d *Dispatcher) Observe(o DeliveryObserver) {
	d.observer = o
}

// Dispatch delivers event to every active subscriber concurrently and waits
// for all of them. A failed delivery never stops the others. Each attempt is
// logged; no rows are written when nobody is subscribed or the subscriber
// query fails.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, target Target) []Outcome {
	subs, err := d.subscribers.ListActiveByEvent(string(event))
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to load webhook subscribers")
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(NewPayload(event, target, d.clock.Now()))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode webhook payload")
		return nil
	}

	return iter.Map(subs, func(w **models.WebhookConfig) Outcome {
		return d.deliver(ctx, *w, event, target, body)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, webhook *models.WebhookConfig, event Event, target Target, body []byte) Outcome {
	entry := &models.WebhookLog{
		ID:         uuid.New().String(),
		WebhookID:  webhook.ID,
		Event:      string(event),
		TemplateID: target.TemplateID,
		GithubURL:  target.GithubURL,
		Payload:    body,
		RetryCount: 0,
	}

	start := d.clock.Now()
	status, statusCode, errMsg := d.post(ctx, webhook, entry.ID, event, body)
	finished := d.clock.Now()
	entry.Status = status
	entry.StatusCode = statusCode
	entry.ErrorMessage = errMsg
	entry.SentAt = finished.UTC().Truncate(time.Millisecond)

	if d.observer != nil {
		d.observer.ObserveDelivery(string(event), status, finished.Sub(start))
	}

	if status == models.DeliveryFailed {
		log.Warn().
			Str("webhook_id", webhook.ID).
			Str("event", string(event)).
			Int("status_code", statusCode).
			Str("error", errMsg).
			Msg("webhook delivery failed")
	}

	if err := d.logs.Create(entry); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to record webhook delivery")
	}

	return Outcome{
		WebhookID:    webhook.ID,
		LogID:        entry.ID,
		Status:       status,
		StatusCode:   statusCode,
		ErrorMessage: errMsg,
	}
}

func (d *Dispatcher) post(ctx context.Context, webhook *models.WebhookConfig, deliveryID string, event Event, body []byte) (string, int, string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return models.DeliveryFailed, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set(HeaderEvent, string(event))
	req.Header.Set(HeaderDelivery, deliveryID)
	if webhook.Secret != "" {
		req.Header.Set(HeaderSignature, SignatureHeader(webhook.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return models.DeliveryFailed, 0, err.Error()
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, d.maxResponseBytes))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return models.DeliverySuccess, resp.StatusCode, ""
	}

	msg := strings.TrimSpace(string(text))
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return models.DeliveryFailed, resp.StatusCode, msg
}

// Task is a detached dispatch. Its result is only for logging and tests.
type Task struct {
	done     chan struct{}
	outcomes []Outcome
}

// Done is closed once every delivery has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Outcomes is valid after Done is closed.
func (t *Task) Outcomes() []Outcome {
	<-t.done
	return t.outcomes
}

// Trigger runs Dispatch in the background, detached from any request
// context. Panics are recovered and logged.
func (d *Dispatcher) Trigger(event Event, target Target) *Task {
	t := &Task{done: make(chan struct{})}

	d.inflight.Go(func() {
		defer close(t.done)

		var pc panics.Catcher
		pc.Try(func() {
			t.outcomes = d.Dispatch(context.Background(), event, target)
		})
		if r := pc.Recovered(); r != nil {
			log.Error().Err(r.AsError()).Str("event", string(event)).Msg("webhook dispatch panicked")
		}
	})

	return t
}

// Wait blocks until every triggered dispatch has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
