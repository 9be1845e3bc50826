package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/httpclient"
	"giftprobe/internal/logging"
	jsonx "giftprobe/internal/shared/json"
)

const maxResponseBytes = 4 << 20

// Config configures a provider client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// openaiClient speaks the OpenAI-compatible chat completions API.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     logging.Logger
}

// NewOpenAIClient constructs a client for any OpenAI-compatible endpoint.
func NewOpenAIClient(model string, config Config, logger logging.Logger) (Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	logger = logging.OrNop(logger)
	client := config.HTTPClient
	if client == nil {
		client = httpclient.New(config.Timeout, logger)
	}
	return &openaiClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		headers:    config.Headers,
		httpClient: client,
		logger:     logger,
	}, nil
}

type oaiRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	payload := oaiRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		payload.ResponseFormat = map[string]any{"type": "json_object"}
	}
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("POST %s model=%s messages=%d", endpoint, c.model, len(req.Messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpclient.DrainAndClose(resp.Body)

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, gperrors.NewTransientError(err, fmt.Sprintf("read llm response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &gperrors.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody), URL: endpoint}
	}

	var oaiResp oaiResponse
	if err := jsonx.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, gperrors.NewPermanentError(err, fmt.Sprintf("decode llm response: %v", err))
	}
	if oaiResp.Error != nil {
		return nil, gperrors.NewPermanentError(fmt.Errorf("%s", oaiResp.Error.Message),
			fmt.Sprintf("llm error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message))
	}
	if len(oaiResp.Choices) == 0 {
		return nil, gperrors.NewPermanentError(fmt.Errorf("no choices"), "llm response had no choices")
	}

	choice := oaiResp.Choices[0]
	c.logger.Debug("LLM finish=%s tokens=%d", choice.FinishReason, oaiResp.Usage.TotalTokens)
	return &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage:      oaiResp.Usage,
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}
