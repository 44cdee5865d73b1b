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

const providerTTS = "speech-synthesis"

// TTSClient calls the text-to-speech service.
type TTSClient struct {
	config config.TTSEndpoint
	client *http.Client
	logger logger.Logger
}

func NewTTSClient(cfg config.TTSEndpoint, log logger.Logger) *TTSClient {
	return &TTSClient{
		config: cfg,
		client: &http.Client{},
		logger: log.With(map[string]interface{}{"provider": providerTTS}),
	}
}

func (c *TTSClient) SynthesizeSpeech(ctx context.Context, text, voiceID string) (string, error) {
	if voiceID == "" {
		voiceID = c.config.DefaultVoiceID
	}
	requestBody := map[string]interface{}{
		"text":     text,
		"voice_id": voiceID,
		"settings": map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/speech", bytes.NewBuffer(body))
	if err != nil {
		return "", apperrors.NewInternalError("build speech request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	timer := startProviderTimer(providerTTS)
	resp, err := c.client.Do(req)
	timer()
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.NewUpstreamUnavailableError(providerTTS, "deadline exceeded")
		}
		return "", apperrors.NewUpstreamUnavailableError(providerTTS, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(providerTTS, "error").Inc()
		return "", classifyStatus(providerTTS, resp.StatusCode, readBody(resp))
	}

	var apiResponse struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerTTS, "error").Inc()
		return "", apperrors.NewUpstreamUnavailableError(providerTTS, fmt.Sprintf("decode error: %v", err))
	}
	if strings.TrimSpace(apiResponse.AudioURL) == "" {
		metrics.ProviderCalls.WithLabelValues(providerTTS, "error").Inc()
		return "", apperrors.NewUpstreamUnavailableError(providerTTS, "response carried no audio url")
	}

	metrics.ProviderCalls.WithLabelValues(providerTTS, "ok").Inc()
	return apiResponse.AudioURL, nil
}
