package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func providerEndpoint(baseURL string) config.ProviderEndpoint {
	return config.ProviderEndpoint{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5000,
	}
}

func jsonHandler(t *testing.T, wantPath string, status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

// ==========================
// Text Generation
// ==========================

func TestLLMClient_GenerateText_Success(t *testing.T) {
	var gotRequest map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Write([]byte(`{"content": {"title": "x"}}`))
	}))
	defer ts.Close()

	client := NewLLMClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	schema := json.RawMessage(`{"type":"object"}`)

	content, err := client.GenerateText(context.Background(), "write a story", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"x"}`, string(content))

	assert.Equal(t, "write a story", gotRequest["prompt"])
	format, ok := gotRequest["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestLLMClient_GenerateText_BadRequestIsTerminal(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, "/v1/generate", http.StatusBadRequest, `{"error":"prompt blocked"}`))
	defer ts.Close()

	client := NewLLMClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	_, err := client.GenerateText(context.Background(), "bad", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamRejected))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestLLMClient_GenerateText_ServerErrorIsRetryable(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, "/v1/generate", http.StatusServiceUnavailable, `oops`))
	defer ts.Close()

	client := NewLLMClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	_, err := client.GenerateText(context.Background(), "x", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestLLMClient_GenerateText_DeadlineIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	client := NewLLMClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GenerateText(ctx, "x", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
}

func TestLLMClient_GenerateText_EmptyContentIsRetryable(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, "/v1/generate", http.StatusOK, `{"content": null}`))
	defer ts.Close()

	client := NewLLMClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	_, err := client.GenerateText(context.Background(), "x", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
}

// ==========================
// Image Generation
// ==========================

func TestImageClient_GenerateImage_Success(t *testing.T) {
	var gotRequest map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Write([]byte(`{"url": "https://cdn.example.com/img.png"}`))
	}))
	defer ts.Close()

	client := NewImageClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	url, err := client.GenerateImage(context.Background(), "a lighthouse", []string{"https://ref.example.com/1.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img.png", url)

	assert.Equal(t, "a lighthouse", gotRequest["prompt"])
	refs, ok := gotRequest["reference_image_urls"].([]interface{})
	require.True(t, ok)
	assert.Len(t, refs, 1)
}

func TestImageClient_GenerateImage_OmitsEmptyReferences(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var gotRequest map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		_, present := gotRequest["reference_image_urls"]
		assert.False(t, present)
		w.Write([]byte(`{"url": "https://cdn.example.com/img.png"}`))
	}))
	defer ts.Close()

	client := NewImageClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	_, err := client.GenerateImage(context.Background(), "a lighthouse", nil)
	require.NoError(t, err)
}

func TestImageClient_GenerateImage_MissingURLIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url": "  "}`))
	}))
	defer ts.Close()

	client := NewImageClient(providerEndpoint(ts.URL), logger.NewTestLogger(t))
	_, err := client.GenerateImage(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
}

// ==========================
// Speech Synthesis
// ==========================

func TestTTSClient_SynthesizeSpeech_DefaultsVoice(t *testing.T) {
	var gotRequest map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Write([]byte(`{"audio_url": "https://cdn.example.com/a.mp3"}`))
	}))
	defer ts.Close()

	client := NewTTSClient(config.TTSEndpoint{
		BaseURL:        ts.URL,
		APIKey:         "test-key",
		DefaultVoiceID: "narrator-default",
	}, logger.NewTestLogger(t))

	url, err := client.SynthesizeSpeech(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp3", url)
	assert.Equal(t, "narrator-default", gotRequest["voice_id"])

	_, err = client.SynthesizeSpeech(context.Background(), "hello", "voice-mara")
	require.NoError(t, err)
	assert.Equal(t, "voice-mara", gotRequest["voice_id"])
}

// ==========================
// Status Classification
// ==========================

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{name: "bad request is terminal", status: 400, wantCode: apperrors.ErrCodeUpstreamRejected, retryable: false},
		{name: "rate limit is transient", status: 429, wantCode: apperrors.ErrCodeUpstreamUnavailable, retryable: true},
		{name: "server error is transient", status: 500, wantCode: apperrors.ErrCodeUpstreamUnavailable, retryable: true},
		{name: "bad gateway is transient", status: 502, wantCode: apperrors.ErrCodeUpstreamUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("image-generation", tt.status, []byte("detail"))
			assert.True(t, apperrors.HasCode(err, tt.wantCode))
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
		})
	}
}
