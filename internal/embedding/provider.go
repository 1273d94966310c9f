// Package embedding provides an interface and default HTTP implementation
// for turning chunk text into vector embeddings, consumed by the scoring
// and indexing stages. Wire format follows the request/response shapes
// used by langchaingo's embeddings client, built on top of the resilient
// httpclient.Client.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jmylchreest/corpusctl/internal/corpuserrors"
	"github.com/jmylchreest/corpusctl/internal/httpclient"
)

// Provider turns a batch of text chunks into embeddings. Implementations
// must preserve input order in the returned slice.
type Provider interface {
	// Embed returns one embedding vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the embedding vector size this provider produces.
	Dimensions() int
}

// embeddingRequest mirrors the OpenAI-compatible embeddings wire format
// most self-hosted and hosted embedding servers accept.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
}

// HTTPProvider calls a remote embedding endpoint over HTTP, in batches of
// at most BatchSize texts per request.
type HTTPProvider struct {
	client     *httpclient.Client
	endpoint   string
	apiKey     string
	model      string
	batchSize  int
	dimensions int
}

// Config configures an HTTPProvider.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	BatchSize  int
	Dimensions int
	Client     *httpclient.Client
}

// NewHTTPProvider constructs an HTTPProvider from cfg.
func NewHTTPProvider(cfg Config) *HTTPProvider {
	client := cfg.Client
	if client == nil {
		client = httpclient.NewWithDefaults()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &HTTPProvider{
		client:     client,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  batchSize,
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the configured embedding vector size.
func (p *HTTPProvider) Dimensions() int {
	return p.dimensions
}

// Embed requests embeddings for texts, chunked into batches of
// p.batchSize, and reassembles them in input order.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d): %w", start, end, err)
		}
		for i, vec := range batch {
			result[start+i] = vec
		}
	}
	return result, nil
}

func (p *HTTPProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, corpuserrors.DependencyUnavailableError("embedding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, corpuserrors.DependencyUnavailableError("embedding",
			fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
