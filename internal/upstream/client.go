// Package upstream talks to the AI provider APIs.
//
// Failure messages are part of the product contract: the chat client
// classifies them by substring, so credential failures must contain
// "API key" and exhausted keys must contain "quota".
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/medlife-ai/medassist/internal/providers"
	"github.com/medlife-ai/medassist/internal/util"
)

// SystemPrompt is the assistant identity sent with every question.
const SystemPrompt = "You are a helpful healthcare AI assistant. Provide accurate, helpful medical information while reminding users to consult healthcare professionals for medical advice."

const (
	maxRetries      = 3
	baseRetryDelay  = 1 * time.Second
	maxAnswerTokens = 1000
)

// ErrInsufficientCredits marks an account the provider rejects for lack of
// prepaid credits. Callers may retry the question against a fallback
// provider instead of surfacing the rejection.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Client handles communication with the AI provider APIs
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new upstream client
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Ask sends a question to the provider described by cfg and returns the
// assistant text. The model defaults to the provider's first catalog entry.
func (c *Client) Ask(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("%s API key is required", cfg.Name)
	}
	if model == "" && len(cfg.Models) > 0 {
		model = cfg.Models[0]
	}

	switch cfg.ID {
	case providers.OpenAI, providers.Mistral:
		return c.askChatCompletions(ctx, cfg, apiKey, model, question)
	case providers.Gemini:
		return c.askGemini(ctx, cfg, apiKey, model, question)
	case providers.Claude:
		return c.askClaude(ctx, cfg, apiKey, model, question)
	default:
		return "", fmt.Errorf("unsupported provider: %s", cfg.ID)
	}
}

// askChatCompletions covers OpenAI and Mistral, which share the
// chat-completions request shape.
func (c *Client) askChatCompletions(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": SystemPrompt},
			{"role": "user", "content": question},
		},
		"max_tokens":  maxAnswerTokens,
		"temperature": 0.7,
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	body, err := c.doWithRetry(ctx, cfg, cfg.BaseURL+"/chat/completions", headers, payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil || len(result.Choices) == 0 {
		return "", fmt.Errorf("no response received from the %s AI service", cfg.Name)
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) askGemini(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{
				{"text": SystemPrompt + "\n\nQuestion: " + question},
			}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"topP":            0.8,
			"maxOutputTokens": maxAnswerTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", cfg.BaseURL, model)
	headers := map[string]string{"X-goog-api-key": apiKey}
	body, err := c.doWithRetry(ctx, cfg, url, headers, payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil ||
		len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response received from the %s AI service", cfg.Name)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) askClaude(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	payload := map[string]interface{}{
		"model":       model,
		"max_tokens":  256,
		"temperature": 0.7,
		"system":      SystemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": question},
		},
	}

	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01", // required header
	}
	body, err := c.doWithRetry(ctx, cfg, cfg.BaseURL+"/messages", headers, payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("no response received from the %s AI service", cfg.Name)
	}
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no response received from the %s AI service", cfg.Name)
}

// doWithRetry posts the payload, retrying transport failures with exponential
// backoff. Advertised retry delays on 429 responses are honored once when
// short enough to wait out.
func (c *Client) doWithRetry(ctx context.Context, cfg providers.Config, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if util.IsVerbose() {
		log.Printf("🔄 [VERBOSE] %s request payload: %s", cfg.Name, util.TruncateBytes(jsonData))
	}

	var lastErr error
	retriedQuota := false
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(baseRetryDelay << (attempt - 1)):
			}
		}

		resp, err := c.doRequest(ctx, url, headers, jsonData)
		if err != nil {
			lastErr = err
			log.Printf("⚠️ %s request attempt %d failed: %v", cfg.Name, attempt+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		// Map provider rejections to the messages the chat client classifies.
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("invalid %s API key. Please check your API key and try again", cfg.Name)
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body = io.NopCloser(bytes.NewReader(body))
			if delay := ParseRetryDelay(resp); !retriedQuota && delay > 0 && delay <= 10*time.Second {
				retriedQuota = true
				log.Printf("⚠️ %s returned 429, retrying after %s", cfg.Name, delay)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, fmt.Errorf("%s API quota exceeded. Please try again later", cfg.Name)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%s service is temporarily unavailable. Please try again later", cfg.Name)
		default:
			if resp.StatusCode == http.StatusBadRequest &&
				strings.Contains(strings.ToLower(string(body)), "credit balance is too low") {
				return nil, fmt.Errorf("%s is unavailable for this account right now (%w). Add credits in the provider's billing page or pass a fallback_provider to continue", cfg.Name, ErrInsufficientCredits)
			}
			return nil, fmt.Errorf("%s request was invalid: %s", cfg.Name, util.TruncateBytes(body))
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("unable to reach the %s AI service: %w", cfg.Name, lastErr)
	}
	return nil, fmt.Errorf("maximum retry attempts reached for %s", cfg.Name)
}

// doRequest performs an HTTP POST with proper headers
func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string, jsonData []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
