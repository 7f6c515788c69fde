package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMessagePath = "/api/v2/cortex/analyst/message"
	defaultTokenType   = "PROGRAMMATIC_ACCESS_TOKEN"
	tokenTypeHeader    = "X-Snowflake-Authorization-Token-Type"
)

type ClientConfig struct {
	AccountURL  string
	Token       string
	TokenType   string
	MessagePath string
	Timeout     time.Duration
}

// Client talks to the warehouse analyst REST endpoint: one user
// message with the question plus the serialized semantic model, one
// answer with text/sql/suggestions content items.
type Client struct {
	accountURL  string
	token       string
	tokenType   string
	messagePath string
	httpClient  *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccountURL) == "" {
		return nil, fmt.Errorf("account URL is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("authorization token is required")
	}
	tokenType := strings.TrimSpace(cfg.TokenType)
	if tokenType == "" {
		tokenType = defaultTokenType
	}
	messagePath := strings.TrimSpace(cfg.MessagePath)
	if messagePath == "" {
		messagePath = defaultMessagePath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		accountURL:  strings.TrimRight(strings.TrimSpace(cfg.AccountURL), "/"),
		token:       strings.TrimSpace(cfg.Token),
		tokenType:   tokenType,
		messagePath: messagePath,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Ask(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Response{}, fmt.Errorf("question is required")
	}
	if strings.TrimSpace(req.SemanticModel) == "" {
		return Response{}, fmt.Errorf("semantic model is required")
	}

	body, err := json.Marshal(buildMessagePayload(req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal analyst payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountURL+c.messagePath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build analyst request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set(tokenTypeHeader, c.tokenType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request analyst message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read analyst response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("analyst message failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}

	var parsed Response
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode analyst response: %w", err)
	}
	if len(parsed.Message.Content) == 0 {
		return Response{}, fmt.Errorf("analyst returned empty message content")
	}
	return parsed, nil
}

func buildMessagePayload(req Request) map[string]any {
	return map[string]any{
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]string{
					{"type": ContentTypeText, "text": strings.TrimSpace(req.Question)},
				},
			},
		},
		"semantic_model": req.SemanticModel,
	}
}
