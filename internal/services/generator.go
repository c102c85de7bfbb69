// Ollama implementation of [Generator]
//
// Talks to a local Ollama instance over its chat API with JSON-constrained output.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/shared"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1:8b"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// OllamaService implements [Generator] against an Ollama chat endpoint.
type OllamaService struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Generator = (*OllamaService)(nil)

// NewOllamaService creates an Ollama-backed generator. Empty arguments fall
// back to the local default instance and model.
func NewOllamaService(baseURL, model string) *OllamaService {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaService{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (o *OllamaService) Name() string {
	return "Ollama"
}

// Complete sends the prompts to the chat endpoint in JSON output mode and
// returns the completion text.
func (o *OllamaService) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := chatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: ollama status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", shared.ErrAPIRequest, parsed.Error)
	}

	if strings.TrimSpace(parsed.Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", shared.ErrAPIRequest)
	}

	return parsed.Message.Content, nil
}
