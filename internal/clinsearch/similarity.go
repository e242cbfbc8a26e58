// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clinsearch holds thin clients for the clinical similarity and
// keyword indexes. Both services are external; the clients only shape
// requests and map hits into the shared SearchHit type.
// Implements: prd011-fusion (R5);
//
//	docs/ARCHITECTURE § Hybrid Retrieval.
package clinsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Embedder turns a query string into the vector posted to the similarity
// index. The embedding service is an external collaborator.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// HTTPEmbedder calls a remote embedding endpoint.
type HTTPEmbedder struct {
	Client *http.Client
	URL    string
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

// Embed posts text and returns the embedding vector.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned HTTP %d", resp.StatusCode)
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	if len(er.Vector) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	return er.Vector, nil
}

// SimilarityClient queries the vector-similarity index. Hit scores follow
// the cosine-similarity + 1.0 convention (>= 1.0).
type SimilarityClient struct {
	Client   *http.Client
	URL      string
	Embedder Embedder
}

type similarityRequest struct {
	QueryVector []float64 `json:"queryVector"`
	TopK        int       `json:"topK"`
	MinScore    float64   `json:"minScore"`
}

type similarityResponse struct {
	Hits []similarityHit `json:"hits"`
}

type similarityHit struct {
	Label  string         `json:"label"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source"`
}

// Search embeds the query and posts it to the similarity index.
func (c *SimilarityClient) Search(ctx context.Context, query string, cfg types.ClinicalSearchConfig) ([]types.SearchHit, error) {
	vec, err := c.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = 1.0
	}

	body, err := json.Marshal(similarityRequest{
		QueryVector: vec,
		TopK:        topK,
		MinScore:    minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling similarity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service returned HTTP %d", resp.StatusCode)
	}

	var sr similarityResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing similarity response: %w", err)
	}

	var hits []types.SearchHit
	for _, h := range sr.Hits {
		hits = append(hits, types.SearchHit{
			Kind:  types.KindSimilarity,
			Label: h.Label,
			Score: h.Score,
			Raw:   h.Source,
		})
	}
	return hits, nil
}
