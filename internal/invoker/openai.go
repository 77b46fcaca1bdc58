package invoker

import (
	"context"
	"encoding/base64"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// MistralBaseURL is Mistral's OpenAI-compatible endpoint.
const MistralBaseURL = "https://api.mistral.ai/v1"

// OpenAIBackend calls OpenAI chat models, or any OpenAI-compatible API
// such as Mistral. Images go inline as data URLs; PDFs are not accepted
// and must reach it as extracted text.
type OpenAIBackend struct {
	name   string
	client *openai.Client
}

// NewOpenAIBackend builds a backend named name. An empty baseURL uses
// OpenAI's default.
func NewOpenAIBackend(name, apiKey, baseURL string) *OpenAIBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIBackend{name: name, client: openai.NewClientWithConfig(config)}
}

// NewMistralBackend builds an OpenAI-compatible backend for Mistral.
func NewMistralBackend(apiKey, baseURL string) *OpenAIBackend {
	if baseURL == "" {
		baseURL = MistralBaseURL
	}
	return NewOpenAIBackend(ProviderMistral, apiKey, baseURL)
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string { return b.name }

// Generate implements Backend.
func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if text, ok := documentText(req); ok {
		user.Content = text + "\n\n" + req.Prompt
	} else if doc := req.Document; doc != nil {
		if !doc.IsImage() {
			return nil, unsupported(b.Name(), doc.MediaType)
		}
		url := "data:" + doc.MediaType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url}},
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
		}
	} else {
		user.Content = req.Prompt
	}

	cr := openai.ChatCompletionRequest{
		Model:       req.Tier.Model,
		Temperature: float32(req.Tier.Temperature),
		MaxTokens:   req.Tier.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create chat completion", b.name)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, emptyResponse(b.Name())
	}
	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
