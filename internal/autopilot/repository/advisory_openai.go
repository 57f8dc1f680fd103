package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/ratelimit"
	"stock-autopilot/pkg/utils"
)

type openaiAdvisoryRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
}

// NewOpenAIAdvisoryRepository creates the OpenAI-backed advisory provider.
func NewOpenAIAdvisoryRepository(cfg *config.Config, log *logger.Logger) AdvisoryRepository {
	maxPerMinute := cfg.OpenAI.MaxRequestPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = 10
	}
	secondsPerRequest := time.Minute / time.Duration(maxPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	tokenLimiter := ratelimit.NewTokenLimiter(cfg.OpenAI.MaxTokenPerMinute)

	return &openaiAdvisoryRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
	}
}

// GetAdvice sends the cycle context to OpenAI and parses the advisory JSON.
func (r *openaiAdvisoryRepository) GetAdvice(ctx context.Context, req *dto.AdvisoryRequest) (*dto.AdvisoryResult, []string, error) {
	if r.cfg.OpenAI.APIKey == "" {
		return nil, nil, fmt.Errorf("openai: %w", ErrMissingCredentials)
	}

	prompt := BuildAdvisoryPrompt(req)

	var openaiResp *dto.OpenAPIRes
	err := utils.Retry(ctx, advisoryMaxAttempts, advisoryRetryDelay, func(ctx context.Context) error {
		var reqErr error
		openaiResp, reqErr = r.sendRequest(ctx, prompt)
		return reqErr
	})
	if err != nil {
		return nil, nil, err
	}

	if len(openaiResp.Choices) == 0 || openaiResp.Choices[0].Message.Content == "" {
		return nil, nil, fmt.Errorf("no content found in OpenAI response")
	}

	result, warnings := ParseAdvisoryText(openaiResp.Choices[0].Message.Content)
	return result, warnings, nil
}

func (r *openaiAdvisoryRepository) sendRequest(ctx context.Context, prompt string) (*dto.OpenAPIRes, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := dto.OpenAPIReq{
		Model: r.cfg.OpenAI.Model,
		Messages: []dto.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.OpenAI.BaseURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.cfg.OpenAI.APIKey))

	r.logger.Debug("Sending request to OpenAI API", logger.StringField("url", r.cfg.OpenAI.BaseURL), logger.StringField("model", r.cfg.OpenAI.Model))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &utils.RetryableError{Err: fmt.Errorf("failed to send request to OpenAI API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.logger.Error("Received non-OK response from OpenAI API", logger.IntField("status_code", resp.StatusCode), logger.StringField("model", r.cfg.OpenAI.Model))
		return nil, advisoryStatusError("OpenAI", resp, body)
	}

	var openaiResp dto.OpenAPIRes
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	if openaiResp.Usage.TotalTokens > r.cfg.OpenAI.MaxTokenPerMinute/2 {
		r.logger.Warn("Token has exceeded 50% of the limit", logger.IntField("remaining", r.tokenLimiter.GetRemaining()))
	}

	if err := r.tokenLimiter.Wait(ctx, openaiResp.Usage.TotalTokens); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}

	return &openaiResp, nil
}
