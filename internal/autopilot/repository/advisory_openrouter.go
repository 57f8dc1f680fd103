package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/utils"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type openRouterAdvisoryRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
}

// NewOpenRouterAdvisoryRepository creates the OpenRouter-backed advisory
// provider.
func NewOpenRouterAdvisoryRepository(cfg *config.Config, log *logger.Logger) AdvisoryRepository {
	return &openRouterAdvisoryRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:    cfg,
		logger: log,
	}
}

// GetAdvice sends the cycle context to OpenRouter and parses the advisory
// JSON.
func (r *openRouterAdvisoryRepository) GetAdvice(ctx context.Context, req *dto.AdvisoryRequest) (*dto.AdvisoryResult, []string, error) {
	if r.cfg.OpenRouter.APIKey == "" {
		return nil, nil, fmt.Errorf("openrouter: %w", ErrMissingCredentials)
	}

	prompt := BuildAdvisoryPrompt(req)

	var content string
	err := utils.Retry(ctx, advisoryMaxAttempts, advisoryRetryDelay, func(ctx context.Context) error {
		var reqErr error
		content, reqErr = r.sendRequest(ctx, prompt)
		return reqErr
	})
	if err != nil {
		return nil, nil, err
	}

	result, warnings := ParseAdvisoryText(content)
	return result, warnings, nil
}

func (r *openRouterAdvisoryRepository) sendRequest(ctx context.Context, prompt string) (string, error) {
	requestBody := dto.OpenAPIReq{
		Model: r.cfg.OpenRouter.Model,
		Messages: []dto.Message{
			{Role: "system", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openRouterURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.OpenRouter.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &utils.RetryableError{Err: fmt.Errorf("failed to send request to OpenRouter: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.logger.Error("Received non-OK response from OpenRouter", logger.IntField("status_code", resp.StatusCode))
		return "", advisoryStatusError("OpenRouter", resp, body)
	}

	var openRouterResp dto.OpenAPIRes
	if err := json.NewDecoder(resp.Body).Decode(&openRouterResp); err != nil {
		return "", fmt.Errorf("failed to decode OpenRouter response: %w", err)
	}

	if len(openRouterResp.Choices) == 0 {
		return "", fmt.Errorf("received empty choices from OpenRouter")
	}

	return openRouterResp.Choices[0].Message.Content, nil
}
