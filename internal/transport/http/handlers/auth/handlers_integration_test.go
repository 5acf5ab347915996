package authhandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pquerna/otp/totp"

	"perfreview/internal/domain/auth"
	"perfreview/internal/platform/config"
	cryptoutil "perfreview/internal/platform/crypto"
	"perfreview/internal/platform/db"
	authhandler "perfreview/internal/transport/http/handlers/auth"
	"perfreview/internal/transport/http/middleware"
)

type captureMailer struct {
	mu       sync.Mutex
	messages []emailMessage
}

type emailMessage struct {
	from    string
	to      string
	subject string
	body    string
}

func (m *captureMailer) Send(_ context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, emailMessage{
		from:    from,
		to:      to,
		subject: subject,
		body:    body,
	})
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *captureMailer) last() (emailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return emailMessage{}, false
	}
	return m.messages[len(m.messages)-1], true
}

type responseEnvelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type resetHarness struct {
	pool    *pgxpool.Pool
	router  http.Handler
	mailer  *captureMailer
	service *auth.Service
}

func newResetTestHarness(t *testing.T) *resetHarness {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	cfg := config.Config{
		DatabaseURL:       dsn,
		JWTSecret:         "integration-test-secret",
		TokenTTL:          8 * time.Hour,
		DataEncryptionKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Environment:       "test",
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, "../../../../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}

	mailer := &captureMailer{}
	service := auth.NewService(auth.NewStore(pool))
	handler := authhandler.NewHandler(service, cfg.JWTSecret, cfg.TokenTTL, crypto, mailer, "no-reply@perfreview.test")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(cfg.JWTSecret, service))
	handler.RegisterRoutes(router)

	return &resetHarness{pool: pool, router: router, mailer: mailer, service: service}
}

func createResetTestUser(t *testing.T, pool *pgxpool.Pool, password string) (string, string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	email := fmt.Sprintf("reset-flow-%d@example.com", time.Now().UnixNano())

	var id string
	err = pool.QueryRow(context.Background(), `
    INSERT INTO users (email, name, role, password_hash)
    VALUES ($1, 'Reset Flow', 'Employee', $2)
    RETURNING id
  `, email, hash).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", id)
	})
	return id, email
}

func postHarnessJSON(t *testing.T, router http.Handler, path, token, body string) (int, responseEnvelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope responseEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response for %s: %v", path, err)
	}
	return rec.Code, envelope
}

var resetTokenPattern = regexp.MustCompile(`Your reset token is: (\S+)`)

func extractResetToken(t *testing.T, body string) string {
	t.Helper()

	matches := resetTokenPattern.FindStringSubmatch(body)
	if len(matches) != 2 {
		t.Fatalf("no reset token in email body: %q", body)
	}
	return matches[1]
}

func TestPasswordResetFlow(t *testing.T) {
	h := newResetTestHarness(t)
	ctx := context.Background()

	const oldPassword = "OriginalPass1"
	userID, email := createResetTestUser(t, h.pool, oldPassword)

	status, envelope := postHarnessJSON(t, h.router, "/auth/request-reset", "", fmt.Sprintf(`{"email":%q}`, email))
	if status != http.StatusOK {
		t.Fatalf("request-reset status = %d, want 200", status)
	}
	if got := envelope.Data["status"]; got != "reset_requested" {
		t.Fatalf("request-reset data.status = %v, want reset_requested", got)
	}

	if h.mailer.count() != 1 {
		t.Fatalf("emails sent = %d, want 1", h.mailer.count())
	}
	msg, _ := h.mailer.last()
	if msg.to != email {
		t.Errorf("email to = %q, want %q", msg.to, email)
	}
	if msg.subject != "Password reset" {
		t.Errorf("email subject = %q", msg.subject)
	}

	token := extractResetToken(t, msg.body)

	// Only the hash is persisted. A database leak must not hand out
	// usable reset tokens.
	var stored string
	if err := h.pool.QueryRow(ctx, "SELECT token FROM password_resets WHERE user_id = $1", userID).Scan(&stored); err != nil {
		t.Fatalf("load stored reset token: %v", err)
	}
	if stored == token {
		t.Fatal("raw reset token stored in database")
	}
	if stored != auth.HashToken(token) {
		t.Fatalf("stored token is not the hash of the emailed token")
	}

	const newPassword = "BrandNewPass1"
	status, envelope = postHarnessJSON(t, h.router, "/auth/reset", "", fmt.Sprintf(`{"token":%q,"newPassword":%q}`, token, newPassword))
	if status != http.StatusOK {
		t.Fatalf("reset status = %d, want 200 (error: %+v)", status, envelope.Error)
	}
	if got := envelope.Data["status"]; got != "password_reset" {
		t.Fatalf("reset data.status = %v, want password_reset", got)
	}

	var newHash string
	if err := h.pool.QueryRow(ctx, "SELECT password_hash FROM users WHERE id = $1", userID).Scan(&newHash); err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if err := auth.CheckPassword(newHash, newPassword); err != nil {
		t.Errorf("new password does not verify after reset: %v", err)
	}
	if err := auth.CheckPassword(newHash, oldPassword); err == nil {
		t.Error("old password still verifies after reset")
	}

	var used bool
	if err := h.pool.QueryRow(ctx, "SELECT used_at IS NOT NULL FROM password_resets WHERE user_id = $1", userID).Scan(&used); err != nil {
		t.Fatalf("check used_at: %v", err)
	}
	if !used {
		t.Error("reset token not marked used")
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/reset", "", fmt.Sprintf(`{"token":%q,"newPassword":"AnotherPass1"}`, token))
	if status != http.StatusBadRequest {
		t.Fatalf("reused token status = %d, want 400", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "invalid_token" {
		t.Fatalf("reused token error = %+v, want invalid_token", envelope.Error)
	}
}

func TestRequestResetUnknownEmail(t *testing.T) {
	h := newResetTestHarness(t)

	email := fmt.Sprintf("nobody-%d@example.com", time.Now().UnixNano())
	status, envelope := postHarnessJSON(t, h.router, "/auth/request-reset", "", fmt.Sprintf(`{"email":%q}`, email))
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got := envelope.Data["status"]; got != "reset_requested" {
		t.Fatalf("data.status = %v, want reset_requested", got)
	}
	if h.mailer.count() != 0 {
		t.Fatalf("emails sent for unknown address = %d, want 0", h.mailer.count())
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	h := newResetTestHarness(t)
	ctx := context.Background()

	userID, _ := createResetTestUser(t, h.pool, "OriginalPass1")

	token := fmt.Sprintf("expired-%d", time.Now().UnixNano())
	if err := h.service.CreatePasswordReset(ctx, userID, auth.HashToken(token), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("seed expired reset: %v", err)
	}

	status, envelope := postHarnessJSON(t, h.router, "/auth/reset", "", fmt.Sprintf(`{"token":%q,"newPassword":"AnotherPass1"}`, token))
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "invalid_token" {
		t.Fatalf("error = %+v, want invalid_token", envelope.Error)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newResetTestHarness(t)

	const password = "OriginalPass1"
	_, email := createResetTestUser(t, h.pool, password)

	status, envelope := postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if status != http.StatusOK {
		t.Fatalf("login status = %d (error: %+v)", status, envelope.Error)
	}
	firstToken, _ := envelope.Data["token"].(string)
	if firstToken == "" {
		t.Fatal("login returned no token")
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/refresh", firstToken, "")
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d (error: %+v)", status, envelope.Error)
	}
	secondToken, _ := envelope.Data["token"].(string)
	if secondToken == "" || secondToken == firstToken {
		t.Fatalf("refresh did not issue a new token")
	}

	// Rotation retires the previous session id, so the old token can no
	// longer refresh.
	status, envelope = postHarnessJSON(t, h.router, "/auth/refresh", firstToken, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh with rotated token status = %d, want 401", status)
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/logout", secondToken, "")
	if status != http.StatusOK {
		t.Fatalf("logout status = %d", status)
	}
	if got := envelope.Data["status"]; got != "logged_out" {
		t.Fatalf("logout data.status = %v, want logged_out", got)
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/refresh", secondToken, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "unauthorized" {
		t.Fatalf("refresh after logout error = %+v, want unauthorized", envelope.Error)
	}
}

func TestMFALifecycle(t *testing.T) {
	h := newResetTestHarness(t)
	ctx := context.Background()

	const password = "OriginalPass1"
	userID, email := createResetTestUser(t, h.pool, password)

	status, envelope := postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if status != http.StatusOK {
		t.Fatalf("login status = %d (error: %+v)", status, envelope.Error)
	}
	token, _ := envelope.Data["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/mfa/setup", token, "")
	if status != http.StatusOK {
		t.Fatalf("mfa setup status = %d (error: %+v)", status, envelope.Error)
	}
	secret, _ := envelope.Data["secret"].(string)
	if secret == "" {
		t.Fatal("mfa setup returned no secret")
	}
	if url, _ := envelope.Data["otpauthUrl"].(string); !strings.HasPrefix(url, "otpauth://") {
		t.Fatalf("otpauthUrl = %q", url)
	}

	// Only the ciphertext lands in the database.
	var storedSecret []byte
	if err := h.pool.QueryRow(ctx, "SELECT mfa_secret_enc FROM users WHERE id = $1", userID).Scan(&storedSecret); err != nil {
		t.Fatalf("load stored mfa secret: %v", err)
	}
	if string(storedSecret) == secret {
		t.Fatal("raw mfa secret stored in database")
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/mfa/enable", token, `{"code":"000000"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("enable with bogus code status = %d, want 400", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "mfa_invalid" {
		t.Fatalf("enable with bogus code error = %+v, want mfa_invalid", envelope.Error)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	status, envelope = postHarnessJSON(t, h.router, "/auth/mfa/enable", token, fmt.Sprintf(`{"code":%q}`, code))
	if status != http.StatusOK {
		t.Fatalf("mfa enable status = %d (error: %+v)", status, envelope.Error)
	}
	if got := envelope.Data["status"]; got != "enabled" {
		t.Fatalf("enable data.status = %v, want enabled", got)
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if status != http.StatusUnauthorized {
		t.Fatalf("login without code status = %d, want 401", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "mfa_required" {
		t.Fatalf("login without code error = %+v, want mfa_required", envelope.Error)
	}

	if code, err = totp.GenerateCode(secret, time.Now()); err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	status, envelope = postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q,"mfaCode":%q}`, email, password, code))
	if status != http.StatusOK {
		t.Fatalf("login with code status = %d (error: %+v)", status, envelope.Error)
	}
	mfaToken, _ := envelope.Data["token"].(string)
	if mfaToken == "" {
		t.Fatal("mfa login returned no token")
	}

	if code, err = totp.GenerateCode(secret, time.Now()); err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	status, envelope = postHarnessJSON(t, h.router, "/auth/mfa/disable", mfaToken, fmt.Sprintf(`{"code":%q}`, code))
	if status != http.StatusOK {
		t.Fatalf("mfa disable status = %d (error: %+v)", status, envelope.Error)
	}
	if got := envelope.Data["status"]; got != "disabled" {
		t.Fatalf("disable data.status = %v, want disabled", got)
	}

	status, envelope = postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	if status != http.StatusOK {
		t.Fatalf("login after disable status = %d (error: %+v)", status, envelope.Error)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newResetTestHarness(t)

	_, email := createResetTestUser(t, h.pool, "OriginalPass1")

	status, envelope := postHarnessJSON(t, h.router, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":"WrongPass1"}`, email))
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "invalid_credentials" {
		t.Fatalf("error = %+v, want invalid_credentials", envelope.Error)
	}
	if strings.Contains(strings.ToLower(envelope.Error.Message), "password") {
		t.Errorf("error message leaks which credential failed: %q", envelope.Error.Message)
	}
}
