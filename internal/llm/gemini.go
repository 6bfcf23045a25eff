package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
)

const (
	// DefaultGeminiModel names the generation model used for issue labels.
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel names the Gemini embedding model.
	DefaultEmbeddingModel = "text-embedding-004"
	// embedBatchSize is the request limit of BatchEmbedContents.
	embedBatchSize = 100
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini generates text with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  contentGenerator
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0.2)
	m.SystemInstruction = genai.NewUserContent(genai.Text(SystemPrompt))
	return &Gemini{client: client, model: m}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate implements the naming generator contract.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}
	return strings.TrimSpace(b.String()), nil
}

type embedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// GeminiEmbedder embeds documents with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	embed  embedBatchFunc
}

// NewGeminiEmbedder connects to the Gemini API.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	em := client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeClustering
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e != nil {
				out[i] = e.Values
			}
		}
		return out, nil
	}
	return &GeminiEmbedder{client: client, embed: embed}, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Embed returns one vector per text, requesting at most 100 texts per call.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d: %v", internalerr.ErrEmbedding, start/embedBatchSize, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: batch %d returned %d vectors for %d texts",
				internalerr.ErrEmbedding, start/embedBatchSize, len(vecs), end-start)
		}
		for _, v := range vecs {
			row := make([]float64, len(v))
			for i, x := range v {
				row[i] = float64(x)
			}
			out = append(out, row)
		}
	}
	return out, nil
}
