package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"speaker-transcriber/internal/domain"
)

// NewOpenAIClient builds a go-openai client. An empty baseURL keeps the public API.
func NewOpenAIClient(apiKey, baseURL string, h *HTTP) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	if h != nil {
		cfg.HTTPClient = h.Client()
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAITranscriber uses the OpenAI audio transcription API as an engine.
type OpenAITranscriber struct {
	client   *openai.Client
	language string
}

// NewOpenAITranscriber wraps client as a speech-to-text engine.
func NewOpenAITranscriber(client *openai.Client, language string) *OpenAITranscriber {
	return &OpenAITranscriber{client: client, language: normalizeLanguage(language)}
}

// Transcribe requests verbose JSON so segment timings are returned.
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audioPath, model string) (domain.Transcript, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.language,
	})
	if err != nil {
		return domain.Transcript{}, classifyOpenAIError("openai transcription", err, domain.ErrModel)
	}

	segments := make([]domain.TranscriptSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if seg, ok := timedSegment(s.Start, s.End, s.Text); ok {
			segments = append(segments, seg)
		}
	}
	return domain.Transcript{Text: resp.Text, Segments: segments, Language: resp.Language}, nil
}

// OpenAICompleter runs generative-text prompts through chat completions.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter wraps client for the given chat model.
func NewOpenAICompleter(client *openai.Client, model string) *OpenAICompleter {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	return &OpenAICompleter{client: client, model: model}
}

// Model returns the chat model name.
func (o *OpenAICompleter) Model() string {
	return o.model
}

// Complete sends prompt as a single user message.
func (o *OpenAICompleter) Complete(ctx context.Context, prompt string, params domain.CompletionParams) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.StopSequences,
	})
	if err != nil {
		return "", classifyOpenAIError("openai chat", err, domain.ErrClient)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty response: %w", domain.ErrClient)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyOpenAIError maps 429 replies to the transient class and everything
// else to fallback.
func classifyOpenAIError(op string, err error, fallback error) error {
	if openAIStatus(err) == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrThrottling, err)
	}
	return fmt.Errorf("%s: %w: %w", op, fallback, err)
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
