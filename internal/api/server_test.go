package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
	"github.com/nerrad567/prodev-core/internal/infrastructure/database"
	"github.com/nerrad567/prodev-core/internal/infrastructure/logging"
	"github.com/nerrad567/prodev-core/internal/user"
	"github.com/nerrad567/prodev-core/migrations"
)

// testServer creates a Server over a real user repository backed by a
// migrated temp-file SQLite store.
func testServer(t *testing.T) (*Server, *user.Repository) {
	t.Helper()
	return testServerWithChecks(t, nil)
}

func testServerWithChecks(t *testing.T, checks map[string]HealthCheck) (*Server, *user.Repository) {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	layer, err := dbaccess.New(db, dbaccess.Options{IsTransient: database.IsTransient})
	if err != nil {
		t.Fatalf("dbaccess.New() error = %v", err)
	}
	repo := user.NewRepository(layer, user.Options{IsUniqueViolation: database.IsUniqueViolation})

	log := logging.Discard()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:   log,
		Users:    repo,
		Metrics:  layer,
		PageSize: 2,
		Checks:   checks,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, repo
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.Default()

	if _, err := New(Deps{Users: &user.Repository{}}); err == nil {
		t.Error("New() without logger: expected error")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without users: expected error")
	}
}

func TestHealth(t *testing.T) {
	t.Run("all ok", func(t *testing.T) {
		srv, _ := testServerWithChecks(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		router := srv.buildRouter()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var body struct {
			Status     string            `json:"status"`
			Version    string            `json:"version"`
			Components map[string]string `json:"components"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if body.Status != "ok" || body.Version != "test" {
			t.Errorf("body = %+v, want status ok and version test", body)
		}
		if body.Components["database"] != "ok" {
			t.Errorf("components[database] = %q, want ok", body.Components["database"])
		}
	})

	t.Run("failing component", func(t *testing.T) {
		srv, _ := testServerWithChecks(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"mqtt":     func(context.Context) error { return errors.New("not connected") },
		})
		router := srv.buildRouter()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(rec.Body.String(), "not connected") {
			t.Errorf("body %q does not name the failure", rec.Body.String())
		}
	})
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("X-Request-ID = %q, want a UUID: %v", got, err)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", "abc123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
			t.Errorf("X-Request-ID = %q, want abc123", got)
		}
	})
}

func TestRecoverPanics(t *testing.T) {
	srv, _ := testServer(t)

	handler := srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestMetrics(t *testing.T) {
	srv, repo := testServer(t)
	router := srv.buildRouter()

	if _, err := repo.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{"dbaccess_", "process_", `prodev_http_requests_total{method="GET"`, `code="200"`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start: expected error")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
