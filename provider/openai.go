package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/translate"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Ollama, Groq, vLLM).
type OpenAI struct {
	cfg  Config
	http *retrier
	log  *zap.Logger
}

// NewOpenAI builds the client. Local endpoints may omit the API key.
func NewOpenAI(cfg Config, log *zap.Logger) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("openai: base_url is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	retries := max(cfg.MaxRetries, 0)
	return &OpenAI{
		cfg: cfg,
		http: &retrier{
			client:     makeHTTPClient(cfg.Proxy, cfg.Timeout),
			maxRetries: retries,
			log:        log,
		},
		log: log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func (c *OpenAI) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
}

// Submit sends the prompt as a single chat completion.
func (c *OpenAI) Submit(ctx context.Context, req translate.Request) (string, error) {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Messages:       msgs,
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	resp, err := c.http.do(ctx, "POST", c.endpoint(), headers, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	text, err := extractResponseText(respBody)
	if err != nil {
		return "", err
	}
	c.log.Debug("completion received", zap.Int("bytes", len(text)))
	return text, nil
}

// extractResponseText accepts chat completions, the responses API and
// bare {"response": ...} bodies.
func extractResponseText(body []byte) (string, error) {
	var raw struct {
		Error   json.RawMessage `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if len(raw.Error) > 0 && string(raw.Error) != "null" {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw.Error, &e) == nil && e.Message != "" {
			return "", fmt.Errorf("API error: %s", e.Message)
		}
		return "", fmt.Errorf("API error: %s", truncate(string(raw.Error), 300))
	}

	if len(raw.Choices) > 0 {
		return raw.Choices[0].Message.Content, nil
	}

	for _, item := range raw.Output {
		if item.Type != "message" {
			continue
		}
		for _, block := range item.Content {
			if block.Type == "output_text" {
				return block.Text, nil
			}
		}
	}

	if raw.Response != nil {
		return *raw.Response, nil
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}
