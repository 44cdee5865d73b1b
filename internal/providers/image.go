package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
)

const providerImage = "image-generation"

// ImageClient calls the image-generation service. A timed-out call may
// still complete server-side; callers must tolerate regenerating an image
// that already exists.
type ImageClient struct {
	config config.ProviderEndpoint
	client *http.Client
	logger logger.Logger
}

func NewImageClient(cfg config.ProviderEndpoint, log logger.Logger) *ImageClient {
	return &ImageClient{
		config: cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{"provider": providerImage}),
	}
}

func (c *ImageClient) GenerateImage(ctx context.Context, prompt string, referenceImageURLs []string) (string, error) {
	requestBody := map[string]interface{}{
		"prompt": prompt,
	}
	if len(referenceImageURLs) > 0 {
		requestBody["reference_image_urls"] = referenceImageURLs
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/images", bytes.NewBuffer(body))
	if err != nil {
		return "", apperrors.NewInternalError("build image request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	timer := startProviderTimer(providerImage)
	resp, err := c.client.Do(req)
	timer()
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.NewUpstreamUnavailableError(providerImage, "deadline exceeded")
		}
		return "", apperrors.NewUpstreamUnavailableError(providerImage, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(providerImage, "error").Inc()
		return "", classifyStatus(providerImage, resp.StatusCode, readBody(resp))
	}

	var apiResponse struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerImage, "error").Inc()
		return "", apperrors.NewUpstreamUnavailableError(providerImage, fmt.Sprintf("decode error: %v", err))
	}
	if strings.TrimSpace(apiResponse.URL) == "" {
		metrics.ProviderCalls.WithLabelValues(providerImage, "error").Inc()
		return "", apperrors.NewUpstreamUnavailableError(providerImage, "response carried no image url")
	}

	metrics.ProviderCalls.WithLabelValues(providerImage, "ok").Inc()
	return apiResponse.URL, nil
}
