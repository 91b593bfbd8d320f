package api_test

import (
	"net/http"
	"testing"
)

func TestChatEmergencyMessage(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "water leak in my kitchen, urgent!",
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body %v", status, body)
	}
	if body["provenance"] != "emergency_protocol" {
		t.Errorf("provenance = %v, want emergency_protocol", body["provenance"])
	}
	if conf := body["confidence"].(float64); conf < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9", conf)
	}
	actions, _ := body["suggested_actions"].([]any)
	if len(actions) != 4 {
		t.Errorf("suggested actions = %d, want 4", len(actions))
	}
	if body["session_id"] == "" {
		t.Error("no session id assigned")
	}
}

func TestChatVerifiedContent(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "how much does it cost?",
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body %v", status, body)
	}
	if body["provenance"] != "database" {
		t.Errorf("provenance = %v, want database", body["provenance"])
	}
	if body["confidence"].(float64) != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for verified content", body["confidence"])
	}
}

func TestChatStaticDefaultWithoutProvider(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "tell me a story about your company",
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body %v", status, body)
	}
	if body["confidence"].(float64) != 0.5 {
		t.Errorf("confidence = %v, want static default 0.5", body["confidence"])
	}
	if body["text"] == "" {
		t.Error("static default carries no text")
	}
}

func TestChatSessionContinuity(t *testing.T) {
	srv := newTestServer(t)

	_, first := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "how much does it cost?",
	})
	session, _ := first["session_id"].(string)
	if session == "" {
		t.Fatal("no session id")
	}

	_, second := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"session_id": session,
		"message":    "how does dispatch work?",
	})
	if second["session_id"] != session {
		t.Errorf("session id changed: %v -> %v", session, second["session_id"])
	}
}

func TestChatWithIncidentReport(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "my basement is flooding",
		"report": map[string]any{
			"location":       "Sydney",
			"reporter_name":  "Sam",
			"reporter_phone": "0400000000",
			"urgency":        "critical",
		},
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body %v", status, body)
	}
	jobID, ok := body["job_id"].(float64)
	if !ok || jobID <= 0 {
		t.Fatalf("job_id = %v, want a created job", body["job_id"])
	}

	// the job is open for dispatch with the incident type inferred from the
	// message
	token := signup(t, srv, "crew@rapid.example")
	_, available := doJSON(t, http.MethodGet, srv.URL+"/v1/jobs/available", token, nil)
	jobs, _ := available["jobs"].([]any)
	if len(jobs) != 1 {
		t.Fatalf("available jobs = %d, want 1", len(jobs))
	}
	job, _ := jobs[0].(map[string]any)
	if job["incident_type"] != "flooding" {
		t.Errorf("incident_type = %v, want flooding inferred from message", job["incident_type"])
	}
	if job["urgency"] != "critical" {
		t.Errorf("urgency = %v, want critical", job["urgency"])
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "   ",
	})
	if status != http.StatusBadRequest {
		t.Errorf("blank message status = %d, want 400", status)
	}

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "hello",
		"role":    "admin",
	})
	if status != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", status)
	}

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/chat", "", map[string]any{
		"message": "my basement is flooding",
		"report":  map[string]any{},
	})
	if status != http.StatusBadRequest {
		t.Errorf("report without location status = %d, want 400", status)
	}
}
