package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"clinisum/internal/domain"
	"clinisum/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *provider.OpenAI {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := provider.NewOpenAI(provider.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1/",
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		t.Errorf("write response: %v", err)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := provider.NewOpenAI(provider.Config{APIKey: "  "}); err == nil {
		t.Fatalf("expected error for empty API key")
	}
}

func TestCompleteSendsBudgetAndReadsUsage(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		writeJSON(t, w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  Summary.  "}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	})

	c, err := p.Complete(context.Background(), domain.CompletionRequest{
		SystemInstruction: "system",
		UserPrompt:        "user",
		Temperature:       0.5,
		MaxOutputTokens:   200,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if c.Text != "  Summary.  " || c.TotalTokens != 15 {
		t.Fatalf("unexpected completion: %+v", c)
	}
	if got.Model != "gpt-3.5-turbo" || got.Temperature != 0.5 || got.MaxTokens != 200 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 ||
		got.Messages[0].Role != "system" || got.Messages[0].Content != "system" ||
		got.Messages[1].Role != "user" || got.Messages[1].Content != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestCompleteWithoutUsage(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}]
		}`)
	})

	c, err := p.Complete(context.Background(), domain.CompletionRequest{MaxOutputTokens: 200})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.TotalTokens != 0 {
		t.Fatalf("expected zero tokens without usage, got %d", c.TotalTokens)
	}
}

func TestCompleteFailureIsNotRetried(t *testing.T) {
	var hits atomic.Int32

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(t, w, http.StatusTooManyRequests,
			`{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota"}}`)
	})

	_, err := p.Complete(context.Background(), domain.CompletionRequest{MaxOutputTokens: 200})

	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Service != domain.ServiceCompletion {
		t.Fatalf("expected completion service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "You exceeded your current quota") {
		t.Fatalf("expected provider message in error, got %q", err.Error())
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single request, got %d", hits.Load())
	}
}

func TestEmbedRestoresInputOrder(t *testing.T) {
	var got struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		writeJSON(t, w, http.StatusOK, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`)
	})

	vectors, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if got.Model != "text-embedding-3-small" || !slices.Equal(got.Input, []string{"first", "second"}) {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(vectors) != 2 || !slices.Equal(vectors[0], []float64{1, 0}) || !slices.Equal(vectors[1], []float64{0, 1}) {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestEmbedMissingEntry(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [{"object": "embedding", "index": 0, "embedding": [1, 0]}],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`)
	})

	_, err := p.Embed(context.Background(), []string{"first", "second"})

	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Service != domain.ServiceEmbedding {
		t.Fatalf("expected embedding service error, got %v", err)
	}
}

func TestEmbedEmptyBatchSkipsRequest(t *testing.T) {
	p := newTestProvider(t, func(http.ResponseWriter, *http.Request) {
		t.Errorf("unexpected request for empty batch")
	})

	vectors, err := p.Embed(context.Background(), nil)
	if err != nil || len(vectors) != 0 {
		t.Fatalf("expected empty result, got %v %v", vectors, err)
	}
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/gpt-3.5-turbo" {
			writeJSON(t, w, http.StatusNotFound, `{"error": {"message": "not found"}}`)
			return
		}
		writeJSON(t, w, http.StatusOK, `{"id": "gpt-3.5-turbo", "object": "model", "created": 0, "owned_by": "openai"}`)
	})

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
