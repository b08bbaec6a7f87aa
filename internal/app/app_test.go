package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-admin/internal/config"
	"user-admin/internal/repository/repotest"
)

func testConfig(driver, path string) config.Config {
	var cfg config.Config
	cfg.Database.Driver = driver
	cfg.Database.Path = path
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewWiresEveryDriver(t *testing.T) {
	tests := []struct {
		driver string
		path   string
	}{
		{driver: config.DriverMemory},
		{driver: config.DriverSQLite, path: filepath.Join(t.TempDir(), "admin.db")},
		{driver: config.DriverPebble, path: filepath.Join(t.TempDir(), "pebble")},
	}

	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			ctx := context.Background()
			a, err := New(ctx, testConfig(tc.driver, tc.path), quietLogger())
			if err != nil {
				t.Fatalf("New error = %v", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					t.Errorf("Close error = %v", err)
				}
			}()

			created, err := a.Admin.CreateUser(ctx, repotest.NewUser("wired", true))
			if err != nil {
				t.Fatalf("CreateUser error = %v", err)
			}
			entries, err := a.Logs.GetLogsForUser(ctx, created.ID)
			if err != nil || len(entries) != 1 {
				t.Fatalf("GetLogsForUser = %v, %v", entries, err)
			}
			if a.Auth.Enabled() {
				t.Error("auth should be disabled without a secret")
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(context.Background(), testConfig("mysql", ""), quietLogger()); err == nil {
		t.Fatal("New should reject an unknown driver")
	}
}

func TestRouterServesAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := New(context.Background(), testConfig(config.DriverMemory, ""), quietLogger())
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	defer a.Close()

	router := a.Router()
	body := `{"forename":"Ada","surname":"Lovelace","email":"ada@example.com","isActive":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/logs/archive", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("archive without bucket status = %d", rec.Code)
	}
}
