// Package client is a small HTTP client for the ragchat server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragchat/internal/domain"
)

// Client talks to a running ragchat server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer     string `json:"answer"`
	NeedsHuman bool   `json:"needs_human"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Ask submits a question and returns the server's answer.
func (c *Client) Ask(ctx context.Context, question string) (domain.Answer, error) {
	body, err := json.Marshal(askRequest{Query: question})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/ask", bytes.NewReader(body))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("ask: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return domain.Answer{}, fmt.Errorf("server: %s", e.Error)
		}
		return domain.Answer{}, fmt.Errorf("server returned %s", resp.Status)
	}

	var out askResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Answer{}, fmt.Errorf("decode response: %w", err)
	}
	return domain.Answer{Text: out.Answer, NeedsHuman: out.NeedsHuman}, nil
}
