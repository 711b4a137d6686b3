package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	jujuerrors "github.com/juju/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", jujuerrors.NotFoundf("landing page %q", "p1"), http.StatusNotFound, ErrCodeNotFound},
		{"not valid", jujuerrors.NotValidf("status %q", "gone"), http.StatusBadRequest, ErrCodeInvalidInput},
		{"unauthorized", jujuerrors.Unauthorizedf("bad credentials"), http.StatusUnauthorized, ErrCodeUnauthorized},
		{"annotated not found", jujuerrors.Annotate(jujuerrors.NotFoundf("image"), "deleting"), http.StatusNotFound, ErrCodeNotFound},
		{"plain", stderrors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("Classify() = %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestRespond_HidesInternalErrorsOutsideDevelopment(t *testing.T) {
	err := stderrors.New("sqlite: database is locked")

	tests := []struct {
		name    string
		dev     bool
		message string
	}{
		{"production", false, genericInternalMessage},
		{"development", true, "sqlite: database is locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Respond(rr, err, tt.dev)

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rr.Code)
			}

			var env Envelope
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success {
				t.Error("Success = true, want false")
			}
			if env.Message != tt.message {
				t.Errorf("Message = %q, want %q", env.Message, tt.message)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"id": "p1"}, "created")

	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Message string            `json:"message"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusCreated || !env.Success || env.Data["id"] != "p1" || env.Message != "created" {
		t.Errorf("unexpected envelope: %d %+v", rr.Code, env)
	}
}
