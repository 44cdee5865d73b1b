package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
)

const providerText = "text-generation"

// LLMClient calls the text-generation service's structured-output endpoint.
type LLMClient struct {
	config config.ProviderEndpoint
	// No client-level timeout; each call carries its own context deadline.
	client *http.Client
	logger logger.Logger
}

func NewLLMClient(cfg config.ProviderEndpoint, log logger.Logger) *LLMClient {
	return &LLMClient{
		config: cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{"provider": providerText}),
	}
}

func (c *LLMClient) GenerateText(ctx context.Context, prompt string, jsonSchema json.RawMessage) (json.RawMessage, error) {
	requestBody := map[string]interface{}{
		"prompt": prompt,
	}
	if len(jsonSchema) > 0 {
		requestBody["response_format"] = map[string]interface{}{
			"type":        "json_schema",
			"json_schema": jsonSchema,
		}
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, apperrors.NewInternalError("build text request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	timer := startProviderTimer(providerText)
	resp, err := c.client.Do(req)
	timer()
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewUpstreamUnavailableError(providerText, "deadline exceeded")
		}
		return nil, apperrors.NewUpstreamUnavailableError(providerText, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(providerText, "error").Inc()
		return nil, classifyStatus(providerText, resp.StatusCode, readBody(resp))
	}

	var apiResponse struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerText, "error").Inc()
		return nil, apperrors.NewUpstreamUnavailableError(providerText, fmt.Sprintf("decode error: %v", err))
	}
	if len(apiResponse.Content) == 0 || string(apiResponse.Content) == "null" {
		metrics.ProviderCalls.WithLabelValues(providerText, "error").Inc()
		return nil, apperrors.NewUpstreamUnavailableError(providerText, "empty content")
	}

	metrics.ProviderCalls.WithLabelValues(providerText, "ok").Inc()
	return apiResponse.Content, nil
}
