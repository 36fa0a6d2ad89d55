// Package asr provides the speech recognition client used to transcribe
// reference voice audio when no transcript is supplied.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lutaSci/voxcpm-service/internal/core"
)

// Form field names for the transcription endpoint.
const (
	formFieldFile     = "file"
	formFieldModel    = "model"
	formFieldLanguage = "language"
)

const defaultRequestTimeout = 60 * time.Second

// Static errors.
var (
	ErrBaseURLEmpty = errors.New("asr base url cannot be empty")
	ErrAPIKeyEmpty  = errors.New("asr api key cannot be empty")
)

// Config holds the settings for the transcription client.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// Loader implements core.RecognizerLoader by validating the configuration
// on first use.
type Loader struct {
	config Config
}

// NewLoader creates a loader for the transcription client.
func NewLoader(cfg Config) *Loader {
	return &Loader{config: cfg}
}

// Load validates the configuration and returns a ready client.
func (l *Loader) Load(_ context.Context) (core.Recognizer, error) {
	if l.config.BaseURL == "" {
		return nil, ErrBaseURLEmpty
	}

	if l.config.APIKey == "" {
		return nil, ErrAPIKeyEmpty
	}

	return NewClient(l.config), nil
}

// Client calls a whisper-compatible transcription endpoint over HTTP.
type Client struct {
	httpClient *http.Client
	config     Config
}

// transcriptionResponse is the JSON body returned by the endpoint.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewClient creates a transcription client from the given configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Recognize transcribes the audio file at audioPath and returns its text.
func (c *Client) Recognize(ctx context.Context, audioPath string) (string, error) {
	body, contentType, err := c.buildMultipartBody(audioPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send transcription request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf(
			"transcription request failed with status %d: %s",
			resp.StatusCode,
			string(responseBody),
		)
	}

	var parsed transcriptionResponse

	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return parsed.Text, nil
}

func (c *Client) buildMultipartBody(audioPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open prompt audio file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to copy audio data: %w", err)
	}

	err = writer.WriteField(formFieldModel, c.config.Model)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}

	if c.config.Language != "" {
		err = writer.WriteField(formFieldLanguage, c.config.Language)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write language field: %w", err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
