package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/ollama/ollama/api"
	"github.com/stormline/dispatch/internal/config"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and a simple
// circuit breaker. It backs the generative fallback tier of the response
// cascade; the cascade treats every error here as "provider unavailable" and
// degrades to a static response.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	model  string
	client *http.Client

	// circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// NewClient creates a new Ollama client wrapper.
func NewClient(cfg config.OllamaConfig, model string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		model:  model,
		client: httpClient,
	}
	logger.Info("ollama: client created", slog.String("base_url", cfg.BaseURL), slog.String("model", model))
	return c, nil
}

func NewDefaultClient(cfg config.OllamaConfig, model string) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, model, defaultClient)
}

// package-level logger; can be replaced by callers.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt32(&c.failures, 0)
}

// Complete sends the user text to the model under the given system directive
// and returns the generated text. Retries transient failures with backoff.
func (c *Client) Complete(ctx context.Context, systemDirective, userText string) (string, error) {
	if c.isCircuitOpen() {
		return "", ErrCircuitOpen
	}

	retries := c.cfg.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.Backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.generate(ctx, systemDirective, userText)
		if err == nil {
			c.recordSuccess()
			return out, nil
		}
		lastErr = err
		c.recordFailure()
		logger.Warn("ollama: generate attempt failed", slog.Int("attempt", attempt+1), slog.Any("err", err))
	}

	return "", fmt.Errorf("generate after %d attempts: %w", retries, lastErr)
}

func (c *Client) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Stream: &stream,
	}

	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("empty response from model")
	}
	return out, nil
}

// Health pings the Ollama instance.
func (c *Client) Health(ctx context.Context) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.api.Heartbeat(ctx); err != nil {
		c.recordFailure()
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Close releases resources held by the client. Idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}
