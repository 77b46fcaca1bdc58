package invoker

import (
	"context"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/pkg/anthropic"
)

const defaultMaxTokens = 4096

// AnthropicBackend calls Claude models. PDFs and images are sent natively.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend wraps an Anthropic client.
func NewAnthropicBackend(client anthropic.Client) *AnthropicBackend {
	return &AnthropicBackend{client: client}
}

// Name implements Backend.
func (b *AnthropicBackend) Name() string { return ProviderAnthropic }

// Generate implements Backend.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	msg := anthropic.Message{Role: "user", Content: req.Prompt}
	if text, ok := documentText(req); ok {
		msg.Parts = []anthropic.Part{{Type: anthropic.PartText, Text: text}}
	} else if doc := req.Document; doc != nil {
		switch {
		case doc.IsPDF():
			msg.Parts = []anthropic.Part{{Type: anthropic.PartDocument, MediaType: model.MediaPDF, Data: doc.Data}}
		case doc.IsImage():
			msg.Parts = []anthropic.Part{{Type: anthropic.PartImage, MediaType: doc.MediaType, Data: doc.Data}}
		default:
			return nil, unsupported(b.Name(), doc.MediaType)
		}
	}

	maxTokens := int64(req.Tier.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := req.Tier.Temperature

	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       req.Tier.Model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(req.System, ""),
		Messages:    []anthropic.Message{msg},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if text == "" {
		return nil, emptyResponse(b.Name())
	}
	return &Response{
		Text:  text,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		},
	}, nil
}
