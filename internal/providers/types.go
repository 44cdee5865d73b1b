// Package providers holds the clients for the external AI services the
// pipeline orchestrates: structured text generation, image generation,
// speech synthesis and reference-asset blob upload. Callers only see the
// interfaces; every implementation classifies failures into the shared
// error taxonomy so the retry layer can tell terminal from transient.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/Esparramador/comiccrafter-ai-sub001/internal/common/errors"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/metrics"
)

// TextGenerator produces a structured JSON document from a prompt. The
// schema is forwarded to the provider so models that support constrained
// decoding honor it; the caller validates the result regardless.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, jsonSchema json.RawMessage) (json.RawMessage, error)
}

// ImageGenerator renders one image and returns its hosted URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, referenceImageURLs []string) (string, error)
}

// SpeechSynthesizer converts one text field into hosted audio.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voiceID string) (string, error)
}

// BlobUploader stores raw bytes (character reference photos) and returns a
// public URL.
type BlobUploader interface {
	UploadBlob(ctx context.Context, data []byte, mimeType string) (string, error)
}

// classifyStatus maps a provider HTTP status onto the error taxonomy: a 400
// means the prompt itself was rejected and retrying cannot help; everything
// else is treated as transient.
func classifyStatus(provider string, status int, body []byte) error {
	detail := fmt.Sprintf("status %d: %s", status, truncate(body, 512))
	if status == http.StatusBadRequest {
		return apperrors.NewUpstreamRejectedError(provider, detail)
	}
	return apperrors.NewUpstreamUnavailableError(provider, detail)
}

func readBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return body
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// startProviderTimer records call duration when the returned func runs.
func startProviderTimer(provider string) func() {
	start := time.Now()
	return func() {
		metrics.ProviderCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
}
