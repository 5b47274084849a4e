package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codevox-dev/codevox/internal/health"
)

func serve(t *testing.T, h *health.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func checkEntry(t *testing.T, body map[string]any, name string) map[string]any {
	t.Helper()
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatalf("missing checks object in %v", body)
	}
	entry, ok := checks[name].(map[string]any)
	if !ok {
		t.Fatalf("missing check %q in %v", name, checks)
	}
	return entry
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := health.New(health.Checker{
		Name:  "history",
		Check: func(context.Context) error { return errors.New("db locked") },
	})
	rec := serve(t, h, "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("body status = %v, want ok", got)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Checker{Name: "history", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "model", Check: func(context.Context) error { return nil }},
	)
	rec := serve(t, h, "/readyz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
	for _, name := range []string{"history", "model"} {
		entry := checkEntry(t, body, name)
		if entry["status"] != "ok" {
			t.Errorf("check %q status = %v, want ok", name, entry["status"])
		}
		if entry["latency"] == "" {
			t.Errorf("check %q has no latency", name)
		}
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Checker{Name: "history", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "model", Check: func(context.Context) error { return errors.New("model file missing") }},
	)
	rec := serve(t, h, "/readyz")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "fail" {
		t.Errorf("body status = %v, want fail", body["status"])
	}
	entry := checkEntry(t, body, "model")
	if entry["status"] != "fail" {
		t.Errorf("check status = %v, want fail", entry["status"])
	}
	if entry["error"] != "model file missing" {
		t.Errorf("check error = %v, want the checker's message", entry["error"])
	}
	if got := checkEntry(t, body, "history")["status"]; got != "ok" {
		t.Errorf("healthy check reported %v", got)
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	t.Parallel()

	rec := serve(t, health.New(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with no checkers", rec.Code)
	}
}

func TestReadyzCheckSeesDeadline(t *testing.T) {
	t.Parallel()

	var hadDeadline bool
	h := health.New(health.Checker{
		Name: "history",
		Check: func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		},
	})
	serve(t, h, "/readyz")

	if !hadDeadline {
		t.Error("check context carried no deadline")
	}
}

func TestReadyzContentType(t *testing.T) {
	t.Parallel()

	rec := serve(t, health.New(), "/readyz")
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestProbeRejectsNonGET(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	health.New().Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/readyz", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
