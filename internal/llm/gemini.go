package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"agentsurvey/internal/config"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini models.
type GeminiProvider struct {
	client           *genai.Client
	model            string
	temperature      float32
	timeout          time.Duration
	structuredOutput bool
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini client from the AI configuration
func NewGeminiProvider(ctx context.Context, cfg *config.AIConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{
		client:           client,
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		timeout:          time.Duration(cfg.TimeoutMS) * time.Millisecond,
		structuredOutput: cfg.StructuredOutput,
	}, nil
}

func (p *GeminiProvider) Model() string {
	return p.model
}

// Generate sends a generateContent request
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}
	if p.structuredOutput && req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.Schema
	}

	parts := []*genai.Part{genai.NewPartFromText(req.UserPrompt)}
	for _, fa := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(fa.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", fa.Name, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, fa.MimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	resp := &Response{Text: result.Text()}
	if result.UsageMetadata != nil {
		resp.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		resp.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return resp, nil
}
