package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/sse"
	"github.com/duoreadme/duoreadme/translate"
)

// LKE submits prompts to a Tencent LKE bot over its SSE chat endpoint.
type LKE struct {
	cfg       Config
	http      *retrier
	log       *zap.Logger
	sessionID func() string
}

// NewLKE checks credentials and builds the client.
func NewLKE(cfg Config, log *zap.Logger) (*LKE, error) {
	if cfg.BotAppKey == "" {
		return nil, errors.New("lke: bot_app_key is required")
	}
	if cfg.VisitorBizID == "" {
		cfg.VisitorBizID = uuid.NewString()
	}
	return &LKE{
		cfg: cfg,
		http: &retrier{
			client:     makeHTTPClient(cfg.Proxy, cfg.Timeout),
			maxRetries: max(cfg.MaxRetries, 0),
			log:        log,
		},
		log:       log,
		sessionID: uuid.NewString,
	}, nil
}

type lkeRequest struct {
	Content           string            `json:"content"`
	BotAppKey         string            `json:"bot_app_key"`
	VisitorBizID      string            `json:"visitor_biz_id"`
	SessionID         string            `json:"session_id"`
	StreamingThrottle int               `json:"streaming_throttle"`
	WorkflowVariables map[string]string `json:"workflow_variables,omitempty"`
}

type lkeReply struct {
	Payload struct {
		Content    string `json:"content"`
		IsFromSelf bool   `json:"is_from_self"`
		IsFinal    bool   `json:"is_final"`
	} `json:"payload"`
}

type lkeError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit sends one request and accumulates the streamed reply. Partial
// replies are appended; a final reply replaces everything received so far.
func (c *LKE) Submit(ctx context.Context, req translate.Request) (string, error) {
	body, err := json.Marshal(lkeRequest{
		Content:           req.Prompt,
		BotAppKey:         c.cfg.BotAppKey,
		VisitorBizID:      c.cfg.VisitorBizID,
		SessionID:         c.sessionID(),
		StreamingThrottle: c.cfg.StreamingThrottle,
		WorkflowVariables: req.Variables,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.http.do(ctx, "POST", c.cfg.BaseURL, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/event-stream",
	}, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var text strings.Builder
	events := sse.NewReader(resp.Body)
	for {
		ev, err := events.Next()
		if errors.Is(err, io.EOF) {
			c.log.Warn("stream ended without a final reply", zap.Int("bytes", text.Len()))
			return text.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("reading event stream: %w", err)
		}

		switch ev.Name {
		case "reply":
			var r lkeReply
			if err := json.Unmarshal([]byte(ev.Data), &r); err != nil {
				c.log.Debug("skipping malformed reply event", zap.Error(err))
				continue
			}
			switch {
			case r.Payload.IsFromSelf:
				continue
			case r.Payload.IsFinal:
				c.log.Debug("final reply received", zap.Int("bytes", len(r.Payload.Content)))
				return r.Payload.Content, nil
			default:
				text.WriteString(r.Payload.Content)
			}
		case "error":
			var e lkeError
			if err := json.Unmarshal([]byte(ev.Data), &e); err == nil && e.Error.Message != "" {
				return "", fmt.Errorf("lke error %d: %s", e.Error.Code, e.Error.Message)
			}
			return "", fmt.Errorf("lke error: %s", truncate(ev.Data, 300))
		default:
			c.log.Debug("ignoring event", zap.String("event", ev.Name))
		}
	}
}
