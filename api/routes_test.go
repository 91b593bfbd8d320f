package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stormline/dispatch/api"
	contentdb "github.com/stormline/dispatch/db"
	"github.com/stormline/dispatch/internal/config"
	dbpkg "github.com/stormline/dispatch/internal/db"
	"github.com/stormline/dispatch/internal/knowledge"
	"github.com/stormline/dispatch/internal/repository/sqlite"
)

const testSecret = "test-secret"

// newTestServer wires the full router against an in-memory database with the
// embedded knowledge content loaded, no generative provider and no hub.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	d, err := dbpkg.New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbpkg.Migrate(ctx, d, contentdb.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, nil)
	syncer, err := knowledge.NewSyncer(repo, contentdb.KnowledgeSchema, nil)
	if err != nil {
		t.Fatalf("syncer: %v", err)
	}
	if _, err := syncer.ImportFS(ctx, contentdb.Content, "content"); err != nil {
		t.Fatalf("import content: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:     testSecret,
		TokenDuration: time.Hour,
		Cascade:       config.CascadeConfig{HistoryTurns: 5},
	}

	srv := httptest.NewServer(api.SetupRoutes(cfg, "test", "now", d, nil, nil))
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	// error middleware responses are plain text; tolerate non-JSON bodies
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

// signup registers a contractor and returns the bearer token.
func signup(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/signup", "", map[string]any{
		"business_name":   "Rapid Restoration",
		"email":           email,
		"password":        "hunter22",
		"service_areas":   "Sydney",
		"specializations": "flooding",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup status = %d, body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("signup returned no token")
	}
	return token
}

// reportJob files an incident and returns the new job id.
func reportJob(t *testing.T, srv *httptest.Server) int64 {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/jobs", "", map[string]any{
		"incident_type": "flooding",
		"location":      "Sydney",
		"description":   "burst pipe in the kitchen",
		"urgency":       "high",
	})
	if status != http.StatusCreated {
		t.Fatalf("report status = %d, body %v", status, body)
	}
	id, ok := body["job_id"].(float64)
	if !ok || id <= 0 {
		t.Fatalf("report body %v, want job_id", body)
	}
	return int64(id)
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}

	status, body = doJSON(t, http.MethodGet, srv.URL+"/version", "", nil)
	if status != http.StatusOK || body["version"] != "test" {
		t.Errorf("version = %d %v", status, body)
	}
}
