package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestNotificationAdminLifecycle(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	suffix := time.Now().UnixNano()

	targetEmail := fmt.Sprintf("notify-target-%d@example.com", suffix)
	otherEmail := fmt.Sprintf("notify-other-%d@example.com", suffix)
	targetID := createUser(t, client, ts.URL, adminToken, targetEmail, "Notify Target", "Employee", "Target123!")
	createUser(t, client, ts.URL, adminToken, otherEmail, "Notify Other", "Employee", "Other123!")
	targetToken := login(t, client, ts.URL, targetEmail, "Target123!")
	otherToken := login(t, client, ts.URL, otherEmail, "Other123!")

	title := fmt.Sprintf("Maintenance window %d", suffix)

	env := postJSONStatus(t, client, ts.URL+"/api/v1/admin/notifications", adminToken, map[string]any{
		"userId": targetID,
		"title":  title,
	}, http.StatusUnprocessableEntity)
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("expected validation_error for missing message, got %s", code)
	}

	created := postJSONStatus(t, client, ts.URL+"/api/v1/admin/notifications", adminToken, map[string]any{
		"userId":  targetID,
		"title":   title,
		"message": "The review service restarts at 22:00 UTC.",
	}, http.StatusCreated)
	if got := envelopeDataMap(t, created)["status"]; got != "created" {
		t.Fatalf("create status = %v", got)
	}

	var notificationID string
	unread := envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/notifications?unreadOnly=true", targetToken))
	for _, n := range unread {
		if n["title"] != title {
			continue
		}
		notificationID, _ = n["id"].(string)
		if n["type"] != "system" {
			t.Fatalf("default type = %v, want system", n["type"])
		}
		if n["isRead"] != false {
			t.Fatalf("fresh notification already read: %v", n)
		}
	}
	if notificationID == "" {
		t.Fatal("created notification not listed for target user")
	}

	env = putJSONStatus(t, client, ts.URL+"/api/v1/notifications/"+notificationID+"/read", otherToken, map[string]any{}, http.StatusForbidden)
	if code := envelopeErrorCode(env); code != "forbidden" {
		t.Fatalf("expected forbidden for non-owner, got %s", code)
	}

	marked := envelopeDataMap(t, putJSON(t, client, ts.URL+"/api/v1/notifications/"+notificationID+"/read", targetToken, map[string]any{}))
	if marked["status"] != "read" {
		t.Fatalf("mark read status = %v", marked["status"])
	}
	// Marking twice stays a success.
	envelopeDataMap(t, putJSON(t, client, ts.URL+"/api/v1/notifications/"+notificationID+"/read", targetToken, map[string]any{}))

	unread = envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/notifications?unreadOnly=true", targetToken))
	for _, n := range unread {
		if n["id"] == notificationID {
			t.Fatal("read notification still listed as unread")
		}
	}

	all, total := getJSONWithTotal(t, client, ts.URL+"/api/v1/admin/notifications", adminToken)
	if total < 1 {
		t.Fatalf("admin listing total = %d, want at least 1", total)
	}
	found := false
	for _, n := range envelopeDataSlice(t, all) {
		if n["id"] == notificationID {
			found = true
		}
	}
	if !found {
		t.Fatal("admin listing missing the created notification")
	}

	deleted := envelopeDataMap(t, deleteJSONStatus(t, client, ts.URL+"/api/v1/admin/notifications/"+notificationID, adminToken, http.StatusOK))
	if deleted["status"] != "deleted" {
		t.Fatalf("delete status = %v", deleted["status"])
	}
	env = deleteJSONStatus(t, client, ts.URL+"/api/v1/admin/notifications/"+notificationID, adminToken, http.StatusNotFound)
	if code := envelopeErrorCode(env); code != "notification_not_found" {
		t.Fatalf("expected notification_not_found after delete, got %s", code)
	}
}
