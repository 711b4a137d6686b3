package webhooks

import "time"

type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
)

func AllEvents() []Event {
	return []Event{EventCreated, EventUpdated}
}

func (e Event) Valid() bool {
	return e == EventCreated || e == EventUpdated
}

// Target identifies the page an event is about.
type Target struct {
	TemplateID string
	GithubURL  string
}

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Payload is the JSON body POSTed to every subscriber.
type Payload struct {
	TemplateID string `json:"templateId"`
	GithubURL  string `json:"githubUrl,omitempty"`
	Event      Event  `json:"event"`
	Timestamp  string `json:"timestamp"`
}

func NewPayload(event Event, target Target, at time.Time) Payload {
	return Payload{
		TemplateID: target.TemplateID,
		GithubURL:  target.GithubURL,
		Event:      event,
		Timestamp:  at.UTC().Format(TimestampFormat),
	}
}
