// ABOUTME: HTTP client for OpenAI-compatible /audio/transcriptions endpoints (whisper servers).
// ABOUTME: Maps HTTP outcomes onto not-understood and service-unavailable conditions.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// WhisperClient transcribes WAV audio through a REST API.
type WhisperClient struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewWhisperClient creates a transcription client for baseURL (for example http://localhost:8080/v1).
func NewWhisperClient(baseURL, apiKey, model, language string) *WhisperClient {
	return &WhisperClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Transcribe uploads audio and returns the recognized text.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", "speech.wav")
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	fields := map[string]string{"model": c.model, "response_format": "json"}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %s", ErrNotUnderstood, strings.TrimSpace(string(snippet)))
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: transcription API returned %d: %s",
			ErrServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: failed to decode transcription: %v", ErrServiceUnavailable, err)
	}
	return parsed.Text, nil
}
