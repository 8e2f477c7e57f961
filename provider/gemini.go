package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/duoreadme/duoreadme/translate"
)

// Gemini streams completions from the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, cfg Config, log *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: makeHTTPClient(cfg.Proxy, cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, log: log}, nil
}

// Submit streams the reply and returns the concatenated text.
func (g *Gemini) Submit(ctx context.Context, req translate.Request) (string, error) {
	var config *genai.GenerateContentConfig
	if req.System != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		}
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	var text strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		text.WriteString(resp.Text())
	}
	g.log.Debug("stream finished", zap.Int("bytes", text.Len()))
	return text.String(), nil
}
