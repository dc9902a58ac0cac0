package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, httpClient *http.Client) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// statusError carries a non-200 reply of the service.
type statusError struct {
	StatusCode int
	Detail     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status code %d: %s", e.StatusCode, e.Detail)
}

func (c *client) health(ctx context.Context) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

func (c *client) summarize(ctx context.Context, text, role string) (gjson.Result, error) {
	return c.do(ctx, http.MethodPost, "/summarize", map[string]string{
		"text":          text,
		"clinical_role": role,
	})
}

func (c *client) feedback(ctx context.Context, feedback string) (gjson.Result, error) {
	return c.do(ctx, http.MethodPost, "/feedback", map[string]string{
		"feedback": feedback,
	})
}

func (c *client) do(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := gjson.GetBytes(raw, "detail").String()
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return gjson.Result{}, &statusError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("invalid JSON reply from %s", path)
	}

	return gjson.ParseBytes(raw), nil
}
