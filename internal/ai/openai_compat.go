package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatGenerator calls an OpenAI-compatible /v1/chat/completions endpoint.
// Works with the hosted API as well as vLLM, LiteLLM, and other
// self-hosted gateways.
type ChatGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewChatGenerator builds a chat-completions TextGenerator. baseURL should
// include the /v1 prefix. maxTokens caps the generated output and timeout
// bounds the whole HTTP exchange so one slow generation cannot stall a
// webhook or broadcast batch.
func NewChatGenerator(baseURL, apiKey, model string, maxTokens int, temperature float64, timeout time.Duration) *ChatGenerator {
	return &ChatGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:      strings.TrimSpace(apiKey),
		model:       strings.TrimSpace(model),
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText implements TextGenerator using the chat completions API.
func (g *ChatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("generation model is required")
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("chat completion decode: %w", err)
	}
	if resp.StatusCode >= 400 {
		if decoded.Error.Message != "" {
			return "", fmt.Errorf("chat completion api error: %s", decoded.Error.Message)
		}
		return "", fmt.Errorf("chat completion api error: %s", resp.Status)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
