package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := db.Init(filepath.Join(t.TempDir(), "handlers_test.db")); err != nil {
		t.Fatalf("db init: %v", err)
	}
	Configure("test-secret", 4, nil)
}

func TestRegisterAndLogin_AuthResponseShape(t *testing.T) {
	initTestDB(t)

	body := `{"name":"Kim Parent","email":"kim@example.com","password":"longenough",
		"phone":"010-9876-5432","campus":"Suji"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}

	// Both auth responses carry the same fields, attended_presentation included.
	var reg map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	for _, key := range []string{"token", "id", "role", "attended_presentation"} {
		if _, ok := reg[key]; !ok {
			t.Errorf("register response missing %q: %v", key, reg)
		}
	}
	if reg["attended_presentation"] != false {
		t.Errorf("attended_presentation = %v, want false for a new parent", reg["attended_presentation"])
	}

	if err := db.Conn().Model(&models.Parent{}).
		Where("email = ?", "kim@example.com").
		Update("attended_presentation", true).Error; err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/users/login",
		strings.NewReader(`{"phone":"01098765432","password":"longenough"}`))
	rec = httptest.NewRecorder()
	Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	var login authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if !login.AttendedPresentation {
		t.Error("login response attended_presentation = false, want true")
	}
	if login.Token == "" {
		t.Error("login response missing token")
	}
}
