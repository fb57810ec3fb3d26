package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
)

type fakeModels struct {
	text       string
	images     [][]byte
	err        error
	lastModel  string
	lastConfig *genai.GenerateContentConfig
	lastCount  int32
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel, f.lastConfig = model, cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func (f *fakeModels) GenerateImages(_ context.Context, model, _ string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.lastModel, f.lastCount = model, cfg.NumberOfImages
	if f.err != nil {
		return nil, f.err
	}
	resp := &genai.GenerateImagesResponse{}
	for _, data := range f.images {
		resp.GeneratedImages = append(resp.GeneratedImages, &genai.GeneratedImage{
			Image: &genai.Image{ImageBytes: data},
		})
	}
	return resp, nil
}

func TestGeminiSummarize(t *testing.T) {
	fake := &fakeModels{text: `{"title":"Site","description":"Useful."}`}
	client := newGeminiClient(fake, config.GeminiConfig{})

	gen, err := client.Summarize(context.Background(), "catalog", "page text")
	require.NoError(t, err)
	assert.Equal(t, domain.Generated{Title: "Site", Description: "Useful."}, gen)
	assert.Equal(t, "gemini-2.5-flash", fake.lastModel)
	require.NotNil(t, fake.lastConfig)
	assert.Equal(t, "application/json", fake.lastConfig.ResponseMIMEType)
	assert.Equal(t, generatedSchema, fake.lastConfig.ResponseSchema)
}

func TestGeminiSummarizeError(t *testing.T) {
	client := newGeminiClient(&fakeModels{err: errors.New("boom")}, config.GeminiConfig{})
	_, err := client.Summarize(context.Background(), "s", "t")
	assert.ErrorContains(t, err, "boom")
}

func TestGeminiGenerate(t *testing.T) {
	fake := &fakeModels{images: [][]byte{[]byte("a"), nil, []byte("b")}}
	client := newGeminiClient(fake, config.GeminiConfig{ImageModel: "imagen-x"})

	images, err := client.Generate(context.Background(), "prompt", 2)
	require.NoError(t, err)
	assert.Equal(t, "imagen-x", fake.lastModel)
	assert.EqualValues(t, 2, fake.lastCount)
	require.Len(t, images, 2)
	assert.Equal(t, []byte("a"), images[0].Data)
	assert.Equal(t, "image/png", images[0].ContentType)
	assert.False(t, images[1].Remote())
}

func TestGeminiGenerateEmpty(t *testing.T) {
	client := newGeminiClient(&fakeModels{}, config.GeminiConfig{})
	_, err := client.Generate(context.Background(), "prompt", 2)
	assert.Error(t, err)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), config.GeminiConfig{})
	assert.ErrorIs(t, err, domain.ErrConfig)
}
