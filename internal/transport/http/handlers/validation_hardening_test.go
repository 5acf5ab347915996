package handlers_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"perfreview/internal/domain/auth"
)

func TestHealthAndReadiness(t *testing.T) {
	ts, _, _ := startTestServer(t)
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("healthz = %d %q, want 200 ok", resp.StatusCode, body)
	}

	resp, err = client.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz request failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ready" {
		t.Fatalf("readyz = %d %q, want 200 ready", resp.StatusCode, body)
	}
}

func TestHighRiskEndpointsReturnValidationErrors(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	userResp := postJSONStatus(t, client, ts.URL+"/api/v1/users", adminToken, map[string]any{
		"email":    "not-an-email",
		"role":     "Wizard",
		"password": "short",
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, userResp, "email")
	assertValidationErrorField(t, userResp, "name")
	assertValidationErrorField(t, userResp, "role")
	assertValidationErrorField(t, userResp, "password")

	cycleResp := postJSONStatus(t, client, ts.URL+"/api/v1/performance-cycles", adminToken, map[string]any{
		"name":      "Backwards Cycle",
		"startDate": "2026-06-30",
		"endDate":   "2026-06-01",
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, cycleResp, "startDate")
	assertValidationErrorField(t, cycleResp, "endDate")

	f := setupWorkflowFixture(t)
	selectionResp := postJSONStatus(t, f.client, f.ts.URL+"/api/v1/reviewer-selections", f.employeeToken, map[string]any{
		"performanceCycleId": f.cycleID,
		"reviewerIds":        []string{},
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, selectionResp, "reviewerIds")

	// An employee cannot be named as a reviewer.
	selectionResp = postJSONStatus(t, f.client, f.ts.URL+"/api/v1/reviewer-selections", f.employeeToken, map[string]any{
		"performanceCycleId": f.cycleID,
		"reviewerIds":        []string{f.employeeID},
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, selectionResp, "reviewerIds")

	selectionResp = postJSONStatus(t, f.client, f.ts.URL+"/api/v1/reviewer-selections", f.employeeToken, map[string]any{
		"performanceCycleId": f.cycleID,
		"reviewerIds":        []string{f.mentorID, f.mentorID},
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, selectionResp, "reviewerIds")
}

func TestSelectionRejectsInactiveCycle(t *testing.T) {
	f := setupWorkflowFixture(t)

	inactiveCycle := envelopeDataID(t, postJSON(t, f.client, f.ts.URL+"/api/v1/performance-cycles", f.adminToken, map[string]any{
		"name":      fmt.Sprintf("Draft Cycle %d", time.Now().UnixNano()),
		"startDate": "2027-01-01",
		"endDate":   "2027-06-30",
		"status":    "inactive",
	}))

	resp := postJSONStatus(t, f.client, f.ts.URL+"/api/v1/reviewer-selections", f.employeeToken, map[string]any{
		"performanceCycleId": inactiveCycle,
		"reviewerIds":        []string{f.mentorID},
	}, http.StatusUnprocessableEntity)
	assertValidationErrorField(t, resp, "performanceCycleId")
}

func TestProtectedEndpointsRequireAuthentication(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodGet, "/api/v1/performance-cycles/active"},
		{http.MethodGet, "/api/v1/reviewer-selections/my-selection"},
		{http.MethodGet, "/api/v1/employee/feedback-forms"},
		{http.MethodGet, "/api/v1/notifications"},
		{http.MethodGet, "/api/v1/dashboard/stats"},
	}
	for _, tc := range paths {
		status, env := requestJSON(t, client, tc.method, ts.URL+tc.path, "", nil, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", tc.method, tc.path, status)
			continue
		}
		if code := envelopeErrorCode(env); code != "unauthorized" {
			t.Errorf("%s %s without token: expected unauthorized, got %s", tc.method, tc.path, code)
		}
	}

	expired, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{
		UserID:    "00000000-0000-0000-0000-000000000001",
		Role:      auth.RoleEmployee,
		SessionID: "00000000-0000-0000-0000-000000000002",
	}, -time.Minute)
	if err != nil {
		t.Fatalf("expired token: %v", err)
	}
	for name, token := range map[string]string{"tampered": "not.a.token", "expired": expired} {
		status, env := requestJSON(t, client, http.MethodGet, ts.URL+"/api/v1/users/me", token, nil, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s token: expected 401, got %d", name, status)
			continue
		}
		if code := envelopeErrorCode(env); code != "unauthorized" {
			t.Errorf("%s token: expected unauthorized, got %s", name, code)
		}
	}
}

func TestRoleGatesDenyOutsiders(t *testing.T) {
	f := setupWorkflowFixture(t)

	// Employees hold only the selection permission.
	denied := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodGet, "/api/v1/users", f.employeeToken},
		{http.MethodPost, "/api/v1/performance-cycles", f.employeeToken},
		{http.MethodGet, "/api/v1/mentor/approvals/pending", f.employeeToken},
		{http.MethodGet, "/api/v1/admin/feedback-forms", f.employeeToken},
		{http.MethodGet, "/api/v1/admin/notifications", f.employeeToken},
		{http.MethodGet, "/api/v1/audit/events", f.employeeToken},
		{http.MethodGet, "/api/v1/audit/events", f.mentorToken},
		{http.MethodPost, "/api/v1/reviewer-selections", f.mentorToken},
		{http.MethodGet, "/api/v1/audit/events", f.adminToken},
	}
	for _, tc := range denied {
		var body any
		if tc.method == http.MethodPost {
			body = map[string]any{}
		}
		status, env := requestJSON(t, f.client, tc.method, f.ts.URL+tc.path, tc.token, body, nil)
		if status != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", tc.method, tc.path, status)
			continue
		}
		if code := envelopeErrorCode(env); code != "forbidden" {
			t.Errorf("%s %s: expected forbidden, got %s", tc.method, tc.path, code)
		}
	}
}

func TestOversizedPayloadRejected(t *testing.T) {
	ts, _, _ := startTestServer(t)
	client := ts.Client()

	huge := `{"email":"` + strings.Repeat("a", 2*1024*1024) + `"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/login", strings.NewReader(huge))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if code := envelopeErrorCode(env); code != "payload_too_large" {
		t.Fatalf("expected payload_too_large, got %s", code)
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/performance-cycles", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if code := envelopeErrorCode(env); code != "invalid_payload" {
		t.Fatalf("expected invalid_payload, got %s", code)
	}
}

func assertValidationErrorField(t *testing.T, env envelope, field string) {
	t.Helper()
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("expected validation_error, got %s", code)
	}
	errMap, _ := env.Error.(map[string]any)
	details, _ := errMap["details"].(map[string]any)
	fields, _ := details["fields"].([]any)
	for _, raw := range fields {
		issue, _ := raw.(map[string]any)
		if issue["field"] == field {
			return
		}
	}
	t.Errorf("expected validation issue for field %q, got %v", field, env.Error)
}
