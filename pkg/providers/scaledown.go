package providers

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
	defaultScaleDownAPIBase = "https://api.scaledown.xyz"
	defaultScaleDownModel   = "gpt-4o"
	defaultTimeout          = 30 * time.Second
)

// ScaleDownClient calls the ScaleDown text-generation API. The call is
// stateless request/response; any non-2xx status, transport error, or
// parse failure is returned as a plain error for the caller's fallback.
type ScaleDownClient struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

func NewScaleDownClient(apiKey, apiBase string, timeout time.Duration) *ScaleDownClient {
	if apiBase == "" {
		apiBase = defaultScaleDownAPIBase
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ScaleDownClient{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends the prompt and returns the generated text.
func (c *ScaleDownClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("ScaleDown API key not configured")
	}

	requestBody := map[string]interface{}{
		"context": "Generate personalized health recommendations based on compressed health trends",
		"prompt":  prompt,
		"model":   defaultScaleDownModel,
		"scaledown": map[string]interface{}{
			"rate": "auto",
		},
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/compress/raw/", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ScaleDown API request failed:\n  Status: %d\n  Body:   %s", resp.StatusCode, string(body))
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (string, error) {
	var apiResponse struct {
		Results struct {
			CompressedPrompt string `json:"compressed_prompt"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if strings.TrimSpace(apiResponse.Results.CompressedPrompt) == "" {
		return "", fmt.Errorf("no generated text in API response")
	}
	return apiResponse.Results.CompressedPrompt, nil
}
