// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package entities wraps the clinical entity extraction service. The service
// turns a consultation transcript into structured symptoms, suspected
// conditions, search queries, and MeSH terms.
// Implements: prd014-pipeline (R1).
package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Client calls the remote entity extractor.
type Client struct {
	HTTP *http.Client
	URL  string
}

type extractRequest struct {
	Transcript string   `json:"transcript"`
	Symptoms   []string `json:"accumulatedSymptoms,omitempty"`
}

// Extract posts the transcript plus any symptoms accumulated over earlier
// turns and returns the extracted entities. Accumulated symptoms the
// service echoes back are merged without duplicates so a multi-turn
// consultation never loses context.
func (c *Client) Extract(ctx context.Context, transcript string, accumulated []string) (types.ClinicalEntities, error) {
	var entities types.ClinicalEntities

	body, err := json.Marshal(extractRequest{Transcript: transcript, Symptoms: accumulated})
	if err != nil {
		return entities, fmt.Errorf("marshaling extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return entities, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return entities, fmt.Errorf("entity extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entities, fmt.Errorf("entity extractor returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return entities, fmt.Errorf("parsing entity response: %w", err)
	}

	entities.Symptoms = mergeSymptoms(accumulated, entities.Symptoms)
	return entities, nil
}

// mergeSymptoms unions the accumulated and newly extracted symptom lists,
// preserving first-seen order and comparing case-insensitively.
func mergeSymptoms(accumulated, extracted []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, list := range [][]string{accumulated, extracted} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, strings.TrimSpace(s))
		}
	}
	return merged
}
