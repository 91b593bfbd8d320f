package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stormline/dispatch/internal/config"
	"github.com/stormline/dispatch/pkg/ollama"
)

func writeGenerateResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"response": text, "done": true})
}

func testConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:                 baseURL,
		Timeout:                 2 * time.Second,
		Retries:                 2,
		Backoff:                 10 * time.Millisecond,
		CircuitFailureThreshold: 10,
		CircuitReset:            time.Minute,
	}
}

func TestCompleteSendsDirectiveAndReturnsText(t *testing.T) {
	var gotSystem, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			gotSystem, _ = req["system"].(string)
			gotPrompt, _ = req["prompt"].(string)
		}
		writeGenerateResponse(w, "  call a licensed plumber  ")
	}))
	defer srv.Close()

	client, err := ollama.NewClient(testConfig(srv.URL), "test-model", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	out, err := client.Complete(context.Background(), "safety first", "who fixes leaks?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "call a licensed plumber" {
		t.Errorf("output = %q, want trimmed response", out)
	}
	if gotSystem != "safety first" {
		t.Errorf("system = %q, want the directive", gotSystem)
	}
	if gotPrompt != "who fixes leaks?" {
		t.Errorf("prompt = %q", gotPrompt)
	}
}

func TestCompleteRetriesTransientFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.Error(w, "temporary", http.StatusInternalServerError)
			return
		}
		writeGenerateResponse(w, "ok")
	}))
	defer srv.Close()

	client, err := ollama.NewClient(testConfig(srv.URL), "test-model", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	out, err := client.Complete(context.Background(), "s", "p")
	if err != nil {
		t.Fatalf("Complete after retry: %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %q, want ok", out)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestCompleteEmptyResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGenerateResponse(w, "   ")
	}))
	defer srv.Close()

	client, err := ollama.NewClient(testConfig(srv.URL), "test-model", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if _, err := client.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("empty model output accepted, want error")
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 2
	cfg.CircuitFailureThreshold = 2
	cfg.CircuitReset = time.Hour

	client, err := ollama.NewClient(cfg, "test-model", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if _, err := client.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("Complete against failing server succeeded")
	}

	before := atomic.LoadInt32(&attempts)
	if _, err := client.Complete(context.Background(), "s", "p"); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if atomic.LoadInt32(&attempts) != before {
		t.Error("open circuit still hit the server")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := ollama.NewClient(testConfig(srv.URL), "test-model", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := ollama.NewClient(testConfig("not a url"), "m", nil); err == nil {
		t.Fatal("invalid base url accepted")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := ollama.NewDefaultClient(testConfig("http://127.0.0.1:11434"), "m")
	if err != nil {
		t.Fatalf("NewDefaultClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
