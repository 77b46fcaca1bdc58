package invoker

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/docextract/internal/docclass"
)

// geminiGenerator is the slice of the genai client the backend needs.
type geminiGenerator interface {
	GenerateContent(ctx context.Context, tier docclass.TierConfig, system string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) GenerateContent(ctx context.Context, tier docclass.TierConfig, system string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m := g.client.GenerativeModel(tier.Model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(float32(tier.Temperature))
	if tier.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(tier.MaxTokens))
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return m.GenerateContent(ctx, parts...)
}

// GeminiBackend calls Gemini models. PDFs and images are sent as inline
// blobs.
type GeminiBackend struct {
	gen    geminiGenerator
	client *genai.Client
}

// NewGeminiBackend dials the Gemini API.
func NewGeminiBackend(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiBackend, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, all...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &GeminiBackend{gen: &genaiGenerator{client: client}, client: client}, nil
}

// Close releases the underlying connection.
func (b *GeminiBackend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Name implements Backend.
func (b *GeminiBackend) Name() string { return ProviderGemini }

// Generate implements Backend.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	var parts []genai.Part
	if text, ok := documentText(req); ok {
		parts = append(parts, genai.Text(text))
	} else if doc := req.Document; doc != nil {
		if !doc.IsPDF() && !doc.IsImage() {
			return nil, unsupported(b.Name(), doc.MediaType)
		}
		parts = append(parts, genai.Blob{MIMEType: doc.MediaType, Data: doc.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := b.gen.GenerateContent(ctx, req.Tier, req.System, parts...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	text := geminiText(resp)
	if text == "" {
		return nil, emptyResponse(b.Name())
	}
	out := &Response{Text: text, Model: req.Tier.Model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
