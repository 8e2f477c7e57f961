// Package provider implements translate.Submitter for the supported
// generation backends: the LKE streaming bot endpoint, OpenAI-compatible
// chat completions and Gemini.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/translate"
)

const (
	ProviderLKE    = "lke"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config holds the settings of one backend.
type Config struct {
	// ID is the provider identifier (lke, openai, gemini, ollama).
	ID string
	// Name is the display name.
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy      string
	Timeout time.Duration
	// MaxRetries is the number of retries after a failed attempt; 0 means
	// a single attempt.
	MaxRetries int

	// LKE bot credentials.
	BotAppKey    string
	VisitorBizID string
	// StreamingThrottle is forwarded to the LKE endpoint.
	StreamingThrottle int
}

// Defaults returns the built-in backend definitions.
func Defaults() map[string]Config {
	return map[string]Config{
		ProviderLKE: {
			ID:                ProviderLKE,
			Name:              "Tencent LKE",
			BaseURL:           "https://wss.lke.cloud.tencent.com/v1/qbot/chat/sse",
			Timeout:           120 * time.Second,
			StreamingThrottle: 1,
		},
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI-compatible",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4.1-mini",
			Timeout: 180 * time.Second,
		},
		ProviderGemini: {
			ID:      ProviderGemini,
			Name:    "Google Gemini",
			Model:   "gemini-2.5-flash",
			Timeout: 180 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
			Timeout: 300 * time.Second,
		},
	}
}

// IDs lists the known provider identifiers.
func IDs() []string {
	ids := make([]string, 0, 4)
	for id := range Defaults() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve fills unset fields of cfg from the defaults for cfg.ID.
func Resolve(cfg Config) Config {
	def, ok := Defaults()[cfg.ID]
	if !ok {
		return cfg
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.StreamingThrottle <= 0 {
		cfg.StreamingThrottle = def.StreamingThrottle
	}
	return cfg
}

// New returns the submitter for cfg.ID.
func New(ctx context.Context, cfg Config, log *zap.Logger) (translate.Submitter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = Resolve(cfg)
	log = log.With(zap.String("provider", cfg.ID))
	switch cfg.ID {
	case ProviderLKE:
		return NewLKE(cfg, log)
	case ProviderOpenAI, ProviderOllama:
		return NewOpenAI(cfg, log)
	case ProviderGemini:
		return NewGemini(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown provider %q (known: %s)", cfg.ID, strings.Join(IDs(), ", "))
}

// StatusError is a non-200 reply from a backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, truncate(e.Body, 500))
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// retrier re-sends a request on transport errors, 429 and 5xx with
// exponential backoff. It returns the first 200 response with its body open.
type retrier struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	log        *zap.Logger
}

func (r *retrier) do(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		r.log.Debug("sending request", zap.String("url", endpoint), zap.Int("attempt", attempt+1))
		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("API request failed: %w", err)
			if attempt < r.maxRetries && ctx.Err() == nil {
				if err := r.wait(ctx, r.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		serr := &StatusError{Code: resp.StatusCode, Body: string(respBody)}
		if !serr.Temporary() || attempt >= r.maxRetries {
			return nil, serr
		}
		lastErr = serr
		delay := r.backoff(attempt)
		if resp.StatusCode == http.StatusTooManyRequests {
			delay = parseRetryDelay(resp.Header, respBody, delay)
		}
		r.log.Warn("retrying after upstream error",
			zap.Int("status", resp.StatusCode),
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
		)
		if err := r.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("exhausted all %d retries: %w", r.maxRetries, lastErr)
}

func (r *retrier) backoff(attempt int) time.Duration {
	base := r.baseDelay
	if base <= 0 {
		base = time.Second
	}
	return base << attempt
}

func (r *retrier) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryDelay reads Retry-After, then Google's RetryInfo detail, and
// falls back to def.
func parseRetryDelay(h http.Header, body []byte, def time.Duration) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return def
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			if d, err := time.ParseDuration(detail.RetryDelay); err == nil {
				return d
			}
		}
	}
	return def
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
