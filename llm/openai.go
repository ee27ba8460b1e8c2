package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tejasvajaitly/linkedin-scraper-api/models"
)

// Client is a lightweight OpenAI-compatible API client for structured
// extraction. It uses net/http directly — no third-party SDK needed.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new extraction client with the given http.Client.
// Pass nil to use a default client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Params holds per-request extraction configuration (BYOK).
type Params struct {
	APIKey  string
	Model   string
	BaseURL string // e.g. "https://api.openai.com/v1"
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal OpenAI chat completion response we need. The
// Error object doubles as the in-body hard-failure signal some providers
// return alongside a 200.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

const systemPrompt = `You are a structured data extraction assistant. You are given rendered snippets of profile entries from a people listing page. For each snippet, extract one JSON object with exactly these fields: name, headline, location, currentCompany, profilePhotoUrl, profileUrl.

Rules:
- Return ONLY a valid JSON array, no markdown fences or explanation.
- The array must contain exactly one object per snippet, in the same order.
- If a field cannot be found in a snippet, use null.`

// ExtractRecords submits one batch of fragment prompts to the extraction
// service and parses its response into structured records, in the order the
// service returned them.
func (c *Client) ExtractRecords(ctx context.Context, prompts []string, params Params) ([]models.StructuredRecord, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "There are %d profile snippets. Extract one record per snippet.\n", len(prompts))
	for i, p := range prompts {
		fmt.Fprintf(&sb, "\n--- snippet %d ---\n%s\n", i+1, p)
	}

	reqBody := chatRequest{
		Model: params.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: sb.String()},
		},
		Temperature: 0,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(params.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, "extraction request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, "failed to read extraction response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, "failed to parse extraction response", err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, chatResp.Error.Message, nil)
	}
	if len(chatResp.Choices) == 0 {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, "extraction service returned no choices", nil)
	}

	records, err := parseRecords(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeLLMFailure, "extraction service returned unparsable JSON", err)
	}
	return records, nil
}

// parseRecords parses the service's textual response as a JSON array of
// records. If direct parsing fails, it strips a code-fence wrapping once and
// retries; a second failure fails the batch.
func parseRecords(raw string) ([]models.StructuredRecord, error) {
	var records []models.StructuredRecord
	if err := json.Unmarshal([]byte(raw), &records); err == nil {
		return records, nil
	}
	stripped := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(stripped), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// stripCodeFence removes a leading ```json (or bare ```) fence and its
// closing fence from a response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// classifyAPIError maps HTTP status codes to appropriate error codes.
func classifyAPIError(statusCode int, body []byte) *models.HarvestError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := "extraction API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewHarvestError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewHarvestError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewHarvestError(models.ErrCodeLLMFailure, fmt.Sprintf("extraction API returned %d: %s", statusCode, msg), nil)
	}
}
