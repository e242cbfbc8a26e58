// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline.
// Implements: prd011-fusion (SearchHit, FusedResult);
//
//	prd012-literature (Reference);
//	prd013-synthesis (SynthesisResult tree);
//	prd014-pipeline (ClinicalEntities, PipelineResult).
//
// See docs/ARCHITECTURE.md § Pipeline Interface, § Data Structures.
package types

// SearchKind tags which index produced a hit.
type SearchKind string

const (
	// KindSimilarity marks a hit from the vector-similarity index. Scores
	// follow the cosine-similarity + 1.0 convention and are >= 1.0.
	KindSimilarity SearchKind = "similarity"

	// KindKeyword marks a hit from the keyword index. Scores are
	// source-native and not comparable to similarity scores.
	KindKeyword SearchKind = "keyword"
)

// SearchHit is one scored hit from the similarity or keyword index.
type SearchHit struct {
	// Kind identifies the producing index.
	Kind SearchKind `json:"kind" yaml:"kind"`

	// Label is the normalized entity name (e.g. a disease name) used as
	// the dedup key during fusion.
	Label string `json:"label" yaml:"label"`

	// Score is the source-native score.
	Score float64 `json:"score" yaml:"score"`

	// Raw carries the source document for display or debugging.
	Raw map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// FusedResult is one entry of the merged, deduplicated ranking produced by
// the fusion engine.
type FusedResult struct {
	// Label is the normalized entity name.
	Label string `json:"label" yaml:"label"`

	// Score is the raw score of the winning hit.
	Score float64 `json:"score" yaml:"score"`

	// Kind identifies which index the winning hit came from.
	Kind SearchKind `json:"kind" yaml:"kind"`

	// SimilarityPercent is a display percentage derived from the raw
	// similarity score ((score - 1) * 100). Meaningful only when Kind is
	// KindSimilarity; keyword hits carry no percent. A minimum-score
	// similarity hit legitimately carries 0, so the field is never omitted.
	SimilarityPercent float64 `json:"similarity_percent" yaml:"similarity_percent"`
}
