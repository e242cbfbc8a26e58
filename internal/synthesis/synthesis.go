// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis turns fused clinical matches plus retrieved literature
// into a validated differential diagnosis via a Generative AI backend.
// Implements: prd013-synthesis (R1-R5);
//
//	docs/ARCHITECTURE § Synthesis.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Engine runs synthesis against a pluggable AI backend.
type Engine struct {
	backend AIBackend
	cfg     types.SynthesisConfig
	logger  *zap.Logger
}

// NewEngine builds a synthesis engine. A nil logger is replaced with a
// no-op one.
func NewEngine(backend AIBackend, cfg types.SynthesisConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{backend: backend, cfg: cfg, logger: logger}
}

// aiSynthesis is the JSON shape the model is asked to return. Citations
// are matched back to real references before they reach the result.
type aiSynthesis struct {
	PrimaryDiagnosis types.PrimaryDiagnosis `json:"primary_diagnosis"`
	Differentials    []types.Differential   `json:"differentials"`
	EvidenceAnalysis types.EvidenceAnalysis `json:"evidence_analysis"`
	Recommendations  types.Recommendations  `json:"recommendations"`
	Citations        []aiCitation           `json:"citations"`
}

type aiCitation struct {
	Title         string `json:"title"`
	Year          int    `json:"year"`
	Relevance     string `json:"relevance"`
	EvidenceLevel string `json:"evidence_level"`
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Synthesize builds the prompt, calls the backend with retry, and
// validates the response. Confidence fields are clamped to [0, 1] and
// model citations that match no retrieved reference are dropped.
func (e *Engine) Synthesize(ctx context.Context, entities types.ClinicalEntities, fused []types.FusedResult, refs []types.Reference) (*types.SynthesisResult, error) {
	prompt, err := buildPrompt(entities, fused, refs, e.cfg)
	if err != nil {
		return nil, err
	}

	maxRetries := e.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	start := time.Now()
	raw, err := e.completeWithRetry(ctx, prompt, maxRetries)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	span, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var ai aiSynthesis
	if err := json.Unmarshal([]byte(span), &ai); err != nil {
		return nil, fmt.Errorf("parsing synthesis JSON: %w", err)
	}
	if ai.PrimaryDiagnosis.Condition == "" {
		return nil, fmt.Errorf("synthesis response has no primary diagnosis")
	}

	result := &types.SynthesisResult{
		PrimaryDiagnosis: ai.PrimaryDiagnosis,
		Differentials:    ai.Differentials,
		EvidenceAnalysis: ai.EvidenceAnalysis,
		Recommendations:  ai.Recommendations,
		Citations:        matchCitations(ai.Citations, refs),
		Metadata: types.SynthesisMetadata{
			SourcesConsulted: len(fused) + len(refs),
			SynthesisTimeMs:  elapsed.Milliseconds(),
			DataCompleteness: DataCompleteness(entities, fused, refs),
		},
	}
	clampResult(result)

	e.logger.Debug("synthesis complete",
		zap.String("backend", e.backend.Name()),
		zap.String("primary", result.PrimaryDiagnosis.Condition),
		zap.Int("citations", len(result.Citations)),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// completeWithRetry calls the backend with exponential backoff.
func (e *Engine) completeWithRetry(ctx context.Context, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := e.backend.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		e.logger.Warn("synthesis backend call failed",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// extractJSON returns the span from the first '{' to the last '}' so a
// model that wraps its JSON in prose still parses.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in synthesis response")
	}
	return raw[start : end+1], nil
}

// matchCitations links model citations to retrieved references by
// normalized title prefix, falling back to a unique year match. Unmatched
// citations are dropped; if nothing matches, the top references are cited
// at moderate evidence so the result is never citation-free when
// literature exists.
func matchCitations(citations []aiCitation, refs []types.Reference) []types.SynthesisCitation {
	var matched []types.SynthesisCitation
	used := make(map[int]bool)

	for _, c := range citations {
		idx := findReference(c, refs, used)
		if idx < 0 {
			continue
		}
		used[idx] = true
		matched = append(matched, types.SynthesisCitation{
			Reference:     refs[idx],
			Relevance:     c.Relevance,
			EvidenceLevel: parseEvidenceLevel(c.EvidenceLevel),
		})
	}

	if len(matched) == 0 && len(refs) > 0 {
		n := len(refs)
		if n > 3 {
			n = 3
		}
		for _, r := range refs[:n] {
			matched = append(matched, types.SynthesisCitation{
				Reference:     r,
				Relevance:     "retrieved for the presenting symptoms",
				EvidenceLevel: types.EvidenceModerate,
			})
		}
	}
	return matched
}

func findReference(c aiCitation, refs []types.Reference, used map[int]bool) int {
	title := normalizeForMatch(c.Title)
	if title != "" {
		for i, r := range refs {
			if used[i] {
				continue
			}
			rt := normalizeForMatch(r.Title)
			if rt == "" {
				continue
			}
			if strings.HasPrefix(rt, title) || strings.HasPrefix(title, rt) {
				return i
			}
		}
	}

	// Year fallback only when it identifies a single reference.
	if c.Year > 0 {
		match := -1
		for i, r := range refs {
			if used[i] || r.Year != c.Year {
				continue
			}
			if match >= 0 {
				return -1
			}
			match = i
		}
		return match
	}
	return -1
}

func normalizeForMatch(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func parseEvidenceLevel(s string) types.EvidenceLevel {
	switch types.EvidenceLevel(strings.ToLower(strings.TrimSpace(s))) {
	case types.EvidenceHigh:
		return types.EvidenceHigh
	case types.EvidenceLow:
		return types.EvidenceLow
	default:
		return types.EvidenceModerate
	}
}

// DataCompleteness scores input coverage: the patient picture contributes
// up to 0.3, fused matches up to 0.35, and literature up to 0.35. The
// pipeline reuses it when synthesis is unavailable.
func DataCompleteness(entities types.ClinicalEntities, fused []types.FusedResult, refs []types.Reference) float64 {
	var patient float64
	if len(entities.Symptoms) > 0 {
		patient += 0.25
	}
	if entities.Demographics.Age > 0 {
		patient += 0.25
	}
	if entities.Demographics.Sex != "" {
		patient += 0.25
	}
	if entities.Severity != "" {
		patient += 0.25
	}

	fusedScore := float64(len(fused)) / 5
	if fusedScore > 1 {
		fusedScore = 1
	}
	refScore := float64(len(refs)) / 5
	if refScore > 1 {
		refScore = 1
	}

	return clamp01(patient*0.3 + fusedScore*0.35 + refScore*0.35)
}

// clampResult forces every confidence-like field into [0, 1].
func clampResult(r *types.SynthesisResult) {
	r.PrimaryDiagnosis.Confidence = clamp01(r.PrimaryDiagnosis.Confidence)
	for i := range r.Differentials {
		r.Differentials[i].Probability = clamp01(r.Differentials[i].Probability)
	}
	r.EvidenceAnalysis.SimilarityConfidence = clamp01(r.EvidenceAnalysis.SimilarityConfidence)
	r.EvidenceAnalysis.LiteratureSupport = clamp01(r.EvidenceAnalysis.LiteratureSupport)
	r.EvidenceAnalysis.SourceConcordance = clamp01(r.EvidenceAnalysis.SourceConcordance)
	r.EvidenceAnalysis.OverallConfidence = clamp01(r.EvidenceAnalysis.OverallConfidence)
	r.Metadata.DataCompleteness = clamp01(r.Metadata.DataCompleteness)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
