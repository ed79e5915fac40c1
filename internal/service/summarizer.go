package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jjenkins/billwatch/internal/model"
)

const (
	defaultAIBaseURL = "https://openrouter.ai/api/v1"
	defaultAIModel   = "mistralai/mistral-7b-instruct"
	defaultAITimeout = 20 * time.Second
	chatPath         = "/chat/completions"
	aiTemperature    = 0.3
)

const systemPrompt = "You are an expert legislative analyst. Always respond with valid JSON only."

const analysisPrompt = `You are an expert legislative analyst. Analyze the following bill text and provide a structured JSON response.

BILL TEXT:
%s

You must respond with ONLY valid JSON in exactly this format (no additional text):
{
  "summary": "A concise 2-3 sentence summary of the bill's main purpose and key provisions",
  "impacts": [
    {"category": "Category Name", "description": "Specific impact description"},
    {"category": "Another Category", "description": "Another impact description"}
  ],
  "pros_cons": [
    {"type": "pro", "argument": "Specific positive argument"},
    {"type": "pro", "argument": "Another positive argument"},
    {"type": "con", "argument": "Specific criticism or concern"},
    {"type": "con", "argument": "Another criticism or concern"}
  ]
}

Guidelines:
- Summary: 150-250 words, focus on main objectives and funding/requirements
- Impacts: 3-5 key impacts, use categories like "Education", "Healthcare", "Economy", "Environment", "Public Safety", "Rural Communities", etc.
- Pros/Cons: 2-4 of each, be specific and balanced

Respond with ONLY the JSON object, no other text.
`

// AIClient calls an OpenAI-compatible chat completions endpoint
type AIClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewAIClient creates a summarizer client
func NewAIClient(baseURL, apiKey, model string, timeout time.Duration) *AIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultAIBaseURL
	}
	if model == "" {
		model = defaultAIModel
	}
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	return &AIClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize issues one completion request and decodes the reply.
// Provider problems are *TransportFailure, undecodable replies *ParseFailure.
func (c *AIClient) Summarize(ctx context.Context, text string) (*model.Analysis, error) {
	content, err := c.complete(ctx, fmt.Sprintf(analysisPrompt, text))
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(content)
}

func (c *AIClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: aiTemperature,
	})
	if err != nil {
		return "", &TransportFailure{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportFailure{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportFailure{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return "", &TransportFailure{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &TransportFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed completion: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &TransportFailure{StatusCode: resp.StatusCode, Err: errors.New("completion has no choices")}
	}

	return out.Choices[0].Message.Content, nil
}

// ParseAnalysis decodes model output, unwrapping an optional ``` fence first
func ParseAnalysis(content string) (*model.Analysis, error) {
	raw := unwrapFence(content)

	var analysis model.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, &ParseFailure{Raw: raw, Err: err}
	}

	for i := range analysis.ProsCons {
		analysis.ProsCons[i].Type = strings.ToLower(strings.TrimSpace(analysis.ProsCons[i].Type))
	}
	if analysis.Impacts == nil {
		analysis.Impacts = []model.Impact{}
	}
	if analysis.ProsCons == nil {
		analysis.ProsCons = []model.ProCon{}
	}

	return &analysis, nil
}

func unwrapFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
