package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestScaleDownClient_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": {"compressed_prompt": "1. Plan two lighter training days this week."}}`))
	}))
	defer server.Close()

	client := NewScaleDownClient("test-key", server.URL, 5*time.Second)
	text, err := client.Generate(context.Background(), "summarize my trends")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.Contains(text, "lighter training days") {
		t.Fatalf("unexpected text %q", text)
	}
	if gotPath != "/compress/raw/" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header missing, got %q", gotKey)
	}
	if gotBody["prompt"] != "summarize my trends" {
		t.Fatalf("prompt not forwarded, body %+v", gotBody)
	}
	if gotBody["model"] != "gpt-4o" {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
}

func TestScaleDownClient_MissingAPIKey(t *testing.T) {
	client := NewScaleDownClient("", "http://localhost:1", time.Second)

	_, err := client.Generate(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing-key error, got %v", err)
	}
}

func TestScaleDownClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewScaleDownClient("test-key", server.URL, time.Second)
	_, err := client.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatalf("expected error for 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error should carry status and body, got %v", err)
	}
}

func TestScaleDownClient_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": {"compressed_prompt": "  "}}`))
	}))
	defer server.Close()

	client := NewScaleDownClient("test-key", server.URL, time.Second)
	_, err := client.Generate(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "no generated text") {
		t.Fatalf("expected empty-response error, got %v", err)
	}
}

func TestParseResponse(t *testing.T) {
	text, err := parseResponse([]byte(`{"results": {"compressed_prompt": "use the stairs"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if text != "use the stairs" {
		t.Fatalf("got %q", text)
	}

	if _, err := parseResponse([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
	if _, err := parseResponse([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing results")
	}
}
