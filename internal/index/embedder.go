package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	regaierrors "regai/internal/errors"
)

// EmbedderConfig holds embedding configuration.
type EmbedderConfig struct {
	Model     string // default "text-embedding-3-small"
	APIKey    string
	BaseURL   string // optional, defaults to OpenAI
	CacheSize int    // LRU cache size, default 10000
}

// Embedder generates text embeddings.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int
}

// openaiEmbedder implements Embedder against the OpenAI embeddings API.
type openaiEmbedder struct {
	config     EmbedderConfig
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
}

// NewEmbedder creates an embedder with an LRU cache in front of the API.
func NewEmbedder(config EmbedderConfig) (Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.CacheSize == 0 {
		config.CacheSize = 10000
	}

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &openaiEmbedder{
		config:     config,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cache:      cache,
	}, nil
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	retryCfg := regaierrors.RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    1 * time.Second,
		MaxDelay:     8 * time.Second,
		JitterFactor: 0.25,
	}
	embedding, err := regaierrors.RetryWithResult(ctx, retryCfg, func(ctx context.Context) ([]float32, error) {
		return e.callAPI(ctx, text)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	e.cache.Add(text, embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension (1536 for text-embedding-3-small).
func (e *openaiEmbedder) Dimensions() int {
	return 1536
}

func (e *openaiEmbedder) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": e.config.Model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	return apiResp.Data[0].Embedding, nil
}
