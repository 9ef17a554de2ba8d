// Package ollama adapts a local Ollama instance to the inference port. It
// sends one bounded request per call, never retries, and runs every reply
// through a layered JSON recovery before giving up on it.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:8b"
	defaultTimeout = 30 * time.Second
)

const intentSystemPrompt = `You classify music playlist requests. Return ONLY a JSON object, no prose:
{
  "type": "artist_request" | "similar_to_request" | "country_request" | "region_request" | "genre_or_mood_request",
  "artist": "", "album": "", "track": "",
  "genre": "", "mood": "",
  "decades": [], "year": 0, "year_from": 0, "year_to": 0,
  "country": "", "country_kind": "origin" | "popular_in",
  "limit": 0
}
Leave fields you cannot infer at their zero value.`

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

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

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeIntent asks the model to classify a free-text request. Transport
// failures map to ErrModelUnavailable, unrecoverable output to
// ErrMalformedReply; the caller degrades either way.
func (c *Client) AnalyzeIntent(ctx context.Context, query string) (domain.IntentGuess, error) {
	content, err := c.chat(ctx, intentSystemPrompt, query)
	if err != nil {
		return domain.IntentGuess{}, err
	}

	raw, err := recoverJSON(content)
	if err != nil {
		return domain.IntentGuess{}, fmt.Errorf("ollama: intent reply: %w", ports.ErrMalformedReply)
	}

	var wire wireIntent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.IntentGuess{}, fmt.Errorf("ollama: decode intent: %w", ports.ErrMalformedReply)
	}
	return wire.toDomain(), nil
}

// SuggestTracks sends an assembled generation prompt and parses the reply
// into filter hints plus suggestions.
func (c *Client) SuggestTracks(ctx context.Context, prompt string) (domain.ModelReply, error) {
	content, err := c.chat(ctx, "", prompt)
	if err != nil {
		return domain.ModelReply{}, err
	}

	raw, err := recoverJSON(content)
	if err != nil {
		return domain.ModelReply{}, fmt.Errorf("ollama: suggestion reply: %w", ports.ErrMalformedReply)
	}

	var wire wireReply
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.ModelReply{}, fmt.Errorf("ollama: decode suggestions: %w", ports.ErrMalformedReply)
	}
	return wire.toDomain(), nil
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload := chatRequest{
		Model:    c.model,
		Stream:   false,
		Format:   "json",
		Messages: messages,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", ports.ErrModelUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: status %d: %w", resp.StatusCode, ports.ErrModelUnavailable)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", ports.ErrMalformedReply)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s: %w", parsed.Error, ports.ErrModelUnavailable)
	}

	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return "", fmt.Errorf("ollama: empty reply: %w", ports.ErrMalformedReply)
	}
	return content, nil
}
