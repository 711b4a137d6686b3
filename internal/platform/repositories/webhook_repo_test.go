package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	jujuerrors "github.com/juju/errors"

	"landr/internal/platform/database"
	"landr/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWebhookRepository_Lifecycle(t *testing.T) {
	repo := NewWebhookRepository(setupTestDB(t))

	hook := &models.WebhookConfig{
		Name:     "deploy",
		URL:      "https://ci.example.com/hook",
		Events:   []string{"created", "updated"},
		Secret:   "s3cret",
		IsActive: true,
	}
	if err := repo.Create(hook); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if hook.ID == "" || !hook.HasSecret {
		t.Errorf("created = %+v", hook)
	}

	fetched, err := repo.GetByID(hook.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if fetched.Secret != "s3cret" || len(fetched.Events) != 2 || !fetched.IsActive {
		t.Errorf("fetched = %+v", fetched)
	}

	active, err := repo.ListActiveByEvent("updated")
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActiveByEvent() = %v, %v", active, err)
	}

	if err := repo.SetActive(hook.ID, false); err != nil {
		t.Fatal(err)
	}
	active, _ = repo.ListActiveByEvent("updated")
	if len(active) != 0 {
		t.Errorf("inactive webhook still listed: %v", active)
	}

	all, err := repo.List()
	if err != nil || len(all) != 1 || all[0].IsActive {
		t.Errorf("List() = %v, %v", all, err)
	}

	if _, err := repo.GetByID("wh_missing"); !jujuerrors.Is(err, jujuerrors.NotFound) {
		t.Errorf("GetByID(missing) error = %v, want NotFound", err)
	}
}

func TestWebhookRepository_ExistsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").WithArgs("wh_1").WillReturnError(errors.New("disk I/O error"))

	if _, err := NewWebhookRepository(db).Exists("wh_1"); err == nil {
		t.Error("Exists() swallowed the query error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWebhookLogRepository_List(t *testing.T) {
	logs := NewWebhookLogRepository(setupTestDB(t))

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, hook := range []string{"wh_a", "wh_b", "wh_a"} {
		err := logs.Create(&models.WebhookLog{
			WebhookID:  hook,
			Event:      "created",
			TemplateID: "bakery",
			Payload:    json.RawMessage(`{"templateId":"bakery"}`),
			Status:     models.DeliverySuccess,
			StatusCode: 200,
			SentAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		webhookID string
		limit     int
		want      int
	}{
		{"all", "", 0, 3},
		{"filtered", "wh_a", 0, 2},
		{"limited", "", 2, 2},
		{"unknown", "wh_z", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logs.List(tt.webhookID, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("List() = %d rows, want %d", len(got), tt.want)
			}
		})
	}

	newest, _ := logs.List("wh_a", 1)
	if !newest[0].SentAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("newest SentAt = %v", newest[0].SentAt)
	}
	if string(newest[0].Payload) != `{"templateId":"bakery"}` {
		t.Errorf("payload = %s", newest[0].Payload)
	}
}
