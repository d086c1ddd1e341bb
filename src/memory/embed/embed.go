// Package embed provides pluggable text-embedding providers. A provider maps
// text to a fixed-dimension vector, deterministically per model version;
// changing models means re-embedding the collection.
package embed

import (
	"context"
	"fmt"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension is the fixed output width of this provider/model pair.
	Dimension() int
}

// DummyDimension is the vector width of the deterministic test embedder.
const DummyDimension = 768

// DummyEmbedder produces deterministic vectors from byte content. Nearby
// texts land on nearby vectors, which is all the tests need.
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

func (DummyEmbedder) Dimension() int { return DummyDimension }

// DummyEmbedding folds the text's bytes into a fixed-width vector.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, DummyDimension)
	for i, ch := range []byte(text) {
		vec[i%DummyDimension] += float32(ch) / 255.0
	}
	return vec
}

// New selects a provider by name: openai, gemini, ollama, voyage, or dummy.
// Credentials come from the conventional environment variables each
// provider's constructor documents.
func New(provider, model string) (Embedder, error) {
	switch provider {
	case "openai":
		return NewOpenAIEmbedder(model)
	case "gemini", "google":
		return NewGeminiEmbedder(context.Background(), model)
	case "ollama":
		return NewOllamaEmbedder(model), nil
	case "voyage", "claude", "anthropic":
		return NewVoyageEmbedder(model), nil
	case "dummy", "":
		return DummyEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
