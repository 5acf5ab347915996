package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestUserDeleteRules(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()

	hrToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	sysToken := login(t, client, ts.URL, cfg.SeedSystemAdminEmail, cfg.SeedSystemAdminPassword)
	suffix := time.Now().UnixNano()

	// Unreferenced users are removed outright.
	disposableID := createUser(t, client, ts.URL, hrToken, fmt.Sprintf("disposable-%d@example.com", suffix), "Disposable", "Employee", "Disposable123!")
	env := deleteJSONStatus(t, client, ts.URL+"/api/v1/users/"+disposableID, sysToken, http.StatusOK)
	if got := envelopeDataMap(t, env)["status"]; got != "deleted" {
		t.Fatalf("delete status = %v, want deleted", got)
	}
	getJSONStatus(t, client, ts.URL+"/api/v1/users/"+disposableID, sysToken, http.StatusNotFound)

	// HR Lead carries users.write but not users.delete.
	keeperID := createUser(t, client, ts.URL, hrToken, fmt.Sprintf("keeper-%d@example.com", suffix), "Keeper", "Employee", "Keeper123!")
	env = deleteJSONStatus(t, client, ts.URL+"/api/v1/users/"+keeperID, hrToken, http.StatusForbidden)
	if code := envelopeErrorCode(env); code != "forbidden" {
		t.Fatalf("hr delete error = %s, want forbidden", code)
	}

	sysProfile := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/users/me", sysToken))
	sysID, _ := sysProfile["id"].(string)
	if sysID == "" {
		t.Fatal("system admin profile has no id")
	}
	env = deleteJSONStatus(t, client, ts.URL+"/api/v1/users/"+sysID, sysToken, http.StatusUnprocessableEntity)
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("self delete error = %s, want validation_error", code)
	}

	// A mentee with a selection on record is deactivated, not deleted.
	mentorEmail := fmt.Sprintf("del-mentor-%d@example.com", suffix)
	mentorID := createUser(t, client, ts.URL, hrToken, mentorEmail, "Delete Mentor", "Mentor", "Mentor123!")
	menteeEmail := fmt.Sprintf("del-mentee-%d@example.com", suffix)
	menteeID := createUser(t, client, ts.URL, hrToken, menteeEmail, "Delete Mentee", "Employee", "Mentee123!")
	createActiveCycle(t, client, ts.URL, hrToken, fmt.Sprintf("Delete Cycle %d", suffix))

	menteeToken := login(t, client, ts.URL, menteeEmail, "Mentee123!")
	activeCycle := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/performance-cycles/active", menteeToken))
	selectionEnv := postJSONStatus(t, client, ts.URL+"/api/v1/reviewer-selections", menteeToken, map[string]any{
		"performanceCycleId": activeCycle["id"],
		"reviewerIds":        []string{mentorID},
	}, http.StatusCreated)
	selectionID := envelopeDataID(t, selectionEnv)

	env = deleteJSONStatus(t, client, ts.URL+"/api/v1/users/"+menteeID, sysToken, http.StatusOK)
	if got := envelopeDataMap(t, env)["status"]; got != "deactivated" {
		t.Fatalf("referenced delete status = %v, want deactivated", got)
	}
	profile := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/users/"+menteeID, sysToken))
	if profile["isActive"] != false {
		t.Fatalf("deactivated user still active: %v", profile["isActive"])
	}

	// Deactivated accounts cannot sign in again.
	env = postJSONStatus(t, client, ts.URL+"/api/v1/auth/login", "", map[string]any{
		"email":    menteeEmail,
		"password": "Mentee123!",
	}, http.StatusUnauthorized)
	if code := envelopeErrorCode(env); code != "invalid_credentials" {
		t.Fatalf("deactivated login error = %s, want invalid_credentials", code)
	}

	// The mentee's selection outlives the deactivation.
	mentorToken := login(t, client, ts.URL, mentorEmail, "Mentor123!")
	pending := envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/mentor/approvals/pending", mentorToken))
	if !containsID(pending, selectionID) {
		t.Fatalf("expected selection %s to remain pending after deactivation", selectionID)
	}

	// The selected reviewer is referenced through the detail row.
	env = deleteJSONStatus(t, client, ts.URL+"/api/v1/users/"+mentorID, sysToken, http.StatusOK)
	if got := envelopeDataMap(t, env)["status"]; got != "deactivated" {
		t.Fatalf("reviewer delete status = %v, want deactivated", got)
	}
}

func TestUserProfileAndAccessRules(t *testing.T) {
	ts, _, cfg := startTestServer(t)
	client := ts.Client()

	hrToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	suffix := time.Now().UnixNano()

	aEmail := fmt.Sprintf("profile-a-%d@example.com", suffix)
	bEmail := fmt.Sprintf("profile-b-%d@example.com", suffix)
	aID := createUser(t, client, ts.URL, hrToken, aEmail, "Profile A", "Employee", "ProfileA123!")
	bID := createUser(t, client, ts.URL, hrToken, bEmail, "Profile B", "Employee", "ProfileB123!")
	aToken := login(t, client, ts.URL, aEmail, "ProfileA123!")

	env := postJSONStatus(t, client, ts.URL+"/api/v1/users", hrToken, map[string]any{
		"email":    aEmail,
		"name":     "Duplicate",
		"role":     "Employee",
		"password": "Duplicate123!",
	}, http.StatusConflict)
	if code := envelopeErrorCode(env); code != "email_taken" {
		t.Fatalf("duplicate create error = %s, want email_taken", code)
	}

	me := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/users/me", aToken))
	if me["email"] != aEmail {
		t.Fatalf("me email = %v, want %s", me["email"], aEmail)
	}

	updated := envelopeDataMap(t, putJSON(t, client, ts.URL+"/api/v1/users/me", aToken, map[string]any{
		"name":       "Profile A Renamed",
		"department": "Engineering",
		"position":   "Senior",
	}))
	if updated["name"] != "Profile A Renamed" || updated["department"] != "Engineering" {
		t.Fatalf("profile update not reflected: %v", updated)
	}

	// Plain employees see themselves, nobody else.
	self := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/users/"+aID, aToken))
	if self["id"] != aID {
		t.Fatalf("self lookup returned %v", self["id"])
	}
	env = getJSONStatus(t, client, ts.URL+"/api/v1/users/"+bID, aToken, http.StatusForbidden)
	if code := envelopeErrorCode(env); code != "forbidden" {
		t.Fatalf("cross lookup error = %s, want forbidden", code)
	}
	other := envelopeDataMap(t, getJSON(t, client, ts.URL+"/api/v1/users/"+bID, hrToken))
	if other["id"] != bID {
		t.Fatalf("hr lookup returned %v", other["id"])
	}

	// Promotion to Mentor makes B selectable as a reviewer.
	promoted := envelopeDataMap(t, putJSON(t, client, ts.URL+"/api/v1/users/"+bID, hrToken, map[string]any{
		"name": "Profile B",
		"role": "Mentor",
	}))
	if promoted["role"] != "Mentor" {
		t.Fatalf("promotion not reflected: %v", promoted["role"])
	}
	reviewers := envelopeDataSlice(t, getJSON(t, client, ts.URL+"/api/v1/users/reviewers", aToken))
	found := false
	for _, reviewer := range reviewers {
		if reviewer["id"] == bID {
			found = true
		}
	}
	if !found {
		t.Fatal("promoted mentor missing from reviewer listing")
	}
}
