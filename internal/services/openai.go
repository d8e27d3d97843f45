package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/shared"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"

	// MaxAudioBytes is the largest upload the transcription endpoint accepts.
	MaxAudioBytes = 25 << 20
	// DefaultAudioFormat is assumed when the caller gives no container hint.
	DefaultAudioFormat = "webm"
)

// OpenAIOpts configures [OpenAIService].
type OpenAIOpts struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	Temperature        float64
	HTTPClient         *http.Client
	Logger             *log.Logger
}

// OpenAIService calls the chat completions and audio transcription endpoints.
type OpenAIService struct {
	opts       OpenAIOpts
	httpClient *http.Client
	retry      RetryPolicy
	logger     *log.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIService creates a client. The API key is required.
func NewOpenAIService(opts OpenAIOpts) (*OpenAIService, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing openai api key", shared.ErrMissingCredentials)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = openAIBaseURL
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-3.5-turbo"
	}
	if opts.TranscriptionModel == "" {
		opts.TranscriptionModel = "whisper-1"
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OpenAIService{
		opts:       opts,
		httpClient: client,
		retry:      RetryPolicy{ReplayPost: true},
		logger:     shared.DiscardLogger(opts.Logger),
	}, nil
}

// InferIntent sends the instruction as the system message and returns the model's raw reply.
func (s *OpenAIService) InferIntent(ctx context.Context, instruction, transcript string) (string, error) {
	payload := chatRequest{
		Model: s.opts.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: transcript},
		},
		Temperature:    s.opts.Temperature,
		MaxTokens:      200,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed chatResponse
	if err := s.do(req, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: openai: empty completion", shared.ErrAPIRequest)
	}

	return parsed.Choices[0].Message.Content, nil
}

// Transcribe uploads audio and returns the recognized text.
//
// format is only used as the upload's file extension so the API can sniff the container.
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: no audio", shared.ErrEmptyInput)
	}
	if len(audio) > MaxAudioBytes {
		return "", fmt.Errorf("%w: audio is %d bytes, limit is %d", shared.ErrInvalidInput, len(audio), MaxAudioBytes)
	}

	format = NormalizeAudioFormat(format)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("model", s.opts.TranscriptionModel)
	_ = form.WriteField("response_format", "json")
	part, err := form.CreateFormFile("file", "recording."+format)
	if err != nil {
		return "", fmt.Errorf("openai: build upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("openai: build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("openai: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var parsed transcriptionResponse
	if err := s.do(req, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTranscription, err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", fmt.Errorf("%w: no speech recognized", shared.ErrTranscription)
	}
	return text, nil
}

func (s *OpenAIService) do(req *http.Request, result any) error {
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	resp, err := doWithRetry(s.httpClient, req, s.retry, s.logger)
	if err != nil {
		return fmt.Errorf("%w: openai: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload openAIErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload)
		msg := payload.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: openai: %s", shared.ErrNotAuthenticated, msg)
		}
		return fmt.Errorf("%w: openai status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: openai: decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// NormalizeAudioFormat lowercases a container hint like ".MP3" or "audio/wav" down to "mp3" or "wav".
func NormalizeAudioFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if i := strings.LastIndexAny(format, "/."); i >= 0 {
		format = format[i+1:]
	}
	if format == "" {
		return DefaultAudioFormat
	}
	return format
}
