package authhandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, err := generateToken()
		if err != nil {
			t.Fatalf("generateToken failed: %v", err)
		}
		if len(token) != 43 {
			t.Fatalf("expected 43 char token for 32 random bytes, got %d (%q)", len(token), token)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("expected URL-safe token, got %q", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("token %q generated twice", token)
		}
		seen[token] = struct{}{}
	}
}

func TestResetEmailBody(t *testing.T) {
	body := resetEmailBody("tok-123", 2*time.Hour)
	if !strings.Contains(body, "tok-123") {
		t.Fatalf("expected body to carry the token, got %q", body)
	}
	if !strings.Contains(body, "2 hour(s)") {
		t.Fatalf("expected body to state the ttl, got %q", body)
	}
}

type testEnvelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *testError     `json:"error"`
}

type testError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newTestRouter() chi.Router {
	h := NewHandler(nil, "test-secret", time.Hour, nil, nil, "")
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path, body string) (int, testEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestLoginRejectsMalformedPayload(t *testing.T) {
	router := newTestRouter()
	status, env := doJSON(t, router, http.MethodPost, "/auth/login", "{not json")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "invalid_payload" {
		t.Fatalf("expected invalid_payload, got %+v", env.Error)
	}
}

func TestRefreshWithoutBearerRejected(t *testing.T) {
	router := newTestRouter()
	status, env := doJSON(t, router, http.MethodPost, "/auth/refresh", "{}")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %+v", env.Error)
	}
}

func TestMFASetupRequiresAuthentication(t *testing.T) {
	router := newTestRouter()
	status, env := doJSON(t, router, http.MethodPost, "/auth/mfa/setup", "{}")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if env.Error == nil || env.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %+v", env.Error)
	}
}
