package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/ports"
)

// models is the part of genai.Models the Gemini client uses.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiClient writes titles with a Gemini text model and draws pictures
// with an Imagen model.
type GeminiClient struct {
	models     models
	model      string
	imageModel string
}

var (
	_ ports.Summarizer     = (*GeminiClient)(nil)
	_ ports.ImageGenerator = (*GeminiClient)(nil)
)

// NewGeminiClient connects to the Gemini API with an API key.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", domain.ErrConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(m models, cfg config.GeminiConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = "imagen-3.0-generate-002"
	}
	return &GeminiClient{models: m, model: model, imageModel: imageModel}
}

var generatedSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
	},
	Required:         []string{"title", "description"},
	PropertyOrdering: []string{"title", "description"},
}

// Summarize requests structured JSON output constrained by a schema.
func (g *GeminiClient) Summarize(ctx context.Context, source, snippet string) (domain.Generated, error) {
	resp, err := g.models.GenerateContent(ctx, g.model,
		genai.Text(userPrompt(source, snippet)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(defaultSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    generatedSchema,
		})
	if err != nil {
		return domain.Generated{}, domain.Timeout("gemini", fmt.Errorf("gemini generate: %w", err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return domain.Generated{}, fmt.Errorf("gemini returned no text")
	}
	return decodeGenerated(text)
}

// Generate draws count images for prompt.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, count int) ([]domain.Image, error) {
	if count <= 0 {
		return nil, nil
	}
	resp, err := g.models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, domain.Timeout("imagen", fmt.Errorf("imagen generate: %w", err))
	}

	images := make([]domain.Image, 0, len(resp.GeneratedImages))
	for _, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		contentType := gen.Image.MIMEType
		if contentType == "" {
			contentType = "image/png"
		}
		images = append(images, domain.Image{Data: gen.Image.ImageBytes, ContentType: contentType})
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("imagen returned no images")
	}
	return images, nil
}
