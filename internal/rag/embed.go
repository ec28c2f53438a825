package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// embedBatchSize caps texts per request; large document sets are embedded
// in several calls instead of one oversized one.
const embedBatchSize = 25

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	APIKey     string
	BaseURL    string // e.g. https://api.openai.com/v1
	Model      string
	HTTPClient *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder with a 30s request timeout.
func NewHTTPEmbedder(apiKey, baseURL, model string) *HTTPEmbedder {
	return &HTTPEmbedder{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed generates one vector per input text, batching requests.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}

	var all [][]float64
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		body, _ := json.Marshal(map[string]any{
			"model": e.Model,
			"input": texts[i:end],
		})

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			e.BaseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.APIKey)

		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding API call: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(excerpt))
		}

		var result struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse embedding response: %w", err)
		}

		for _, d := range result.Data {
			all = append(all, d.Embedding)
		}
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(all))
	}
	return all, nil
}
