// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clinsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// KeywordClient queries the BM25 keyword index. The index speaks the
// Elasticsearch query DSL; scores are unbounded raw BM25 values.
type KeywordClient struct {
	Client *http.Client
	URL    string
}

type keywordRequest struct {
	Query keywordQuery `json:"query"`
	Size  int          `json:"size"`
}

type keywordQuery struct {
	Bool keywordBool `json:"bool"`
}

type keywordBool struct {
	Should             []keywordMatch `json:"should"`
	MinimumShouldMatch int            `json:"minimum_should_match"`
}

type keywordMatch struct {
	Match map[string]string `json:"match"`
}

type keywordResponse struct {
	Hits struct {
		Hits []keywordHit `json:"hits"`
	} `json:"hits"`
}

type keywordHit struct {
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// Search posts a bool/should match query over the given terms. Each term
// becomes its own match clause so multi-symptom queries score documents
// that cover any subset of the terms.
func (c *KeywordClient) Search(ctx context.Context, terms []string, cfg types.ClinicalSearchConfig) ([]types.SearchHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}

	kq := keywordRequest{Size: topK}
	kq.Query.Bool.MinimumShouldMatch = 1
	for _, term := range terms {
		kq.Query.Bool.Should = append(kq.Query.Bool.Should, keywordMatch{
			Match: map[string]string{"content": term},
		})
	}

	body, err := json.Marshal(kq)
	if err != nil {
		return nil, fmt.Errorf("marshaling keyword query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyword service returned HTTP %d", resp.StatusCode)
	}

	var kr keywordResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, fmt.Errorf("parsing keyword response: %w", err)
	}

	var hits []types.SearchHit
	for _, h := range kr.Hits.Hits {
		label, _ := h.Source["label"].(string)
		hits = append(hits, types.SearchHit{
			Kind:  types.KindKeyword,
			Label: label,
			Score: h.Score,
			Raw:   h.Source,
		})
	}
	return hits, nil
}
