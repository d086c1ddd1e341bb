package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// VoyageEmbedder proxies to Voyage AI, the embedding service Anthropic
// recommends for Claude-based stacks. Requires VOYAGE_API_KEY.
// Defaults:
//   - model: "voyage-3.5" (1024 dimensions)
//   - input_type: "document" (override via VOYAGE_INPUT_TYPE)
//   - endpoint: "https://api.voyageai.com/v1/embeddings" (override via VOYAGE_API_BASE)
type VoyageEmbedder struct {
	client    *http.Client
	apiKey    string
	model     string
	inputType string
	endpoint  string
}

// NewVoyageEmbedder builds an embedder for the given model.
func NewVoyageEmbedder(model string) *VoyageEmbedder {
	if model == "" {
		model = "voyage-3.5"
	}
	inputType := os.Getenv("VOYAGE_INPUT_TYPE")
	if inputType == "" {
		inputType = "document" // "query" also valid; see Voyage docs
	}
	endpoint := os.Getenv("VOYAGE_API_BASE")
	if endpoint == "" {
		endpoint = "https://api.voyageai.com/v1/embeddings"
	}
	return &VoyageEmbedder{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    os.Getenv("VOYAGE_API_KEY"),
		model:     model,
		inputType: inputType,
		endpoint:  endpoint,
	}
}

func (e *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.apiKey == "" {
		// Keep this explicit so callers see *why* this provider isn't working.
		return nil, errors.New("VoyageEmbedder: VOYAGE_API_KEY not set")
	}

	payload := map[string]any{
		"input":      []string{text},
		"model":      e.model,
		"input_type": e.inputType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, fmt.Errorf("voyage error %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, errors.New("voyage embeddings: empty response")
	}
	return out.Data[0].Embedding, nil
}

func (e *VoyageEmbedder) Dimension() int { return 1024 }
