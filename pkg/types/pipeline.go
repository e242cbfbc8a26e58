// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvidenceRating is the coarse pipeline-level evidence grade. Unlike the
// per-citation EvidenceLevel it uses "medium" for the middle grade.
// Per prd014-pipeline R5.2.
type EvidenceRating string

const (
	RatingHigh   EvidenceRating = "high"
	RatingMedium EvidenceRating = "medium"
	RatingLow    EvidenceRating = "low"
)

// PipelineResult is the consolidated output of one pipeline invocation.
// The caller always receives one of these for any combination of
// optional-phase failures; only invalid arguments produce an error instead.
type PipelineResult struct {
	// Entities is the extractor output the pipeline ran on.
	Entities ClinicalEntities `json:"entities" yaml:"entities"`

	// FusedResults is the merged similarity + keyword ranking.
	FusedResults []FusedResult `json:"fused_results" yaml:"fused_results"`

	// References is the merged literature list. Empty when literature
	// search is disabled or every source failed.
	References []Reference `json:"references" yaml:"references"`

	// SourcesSearched names the literature sources that answered.
	SourcesSearched []string `json:"sources_searched" yaml:"sources_searched"`

	// Synthesis is the model-backed assessment, nil when synthesis was
	// disabled, unavailable, or failed.
	Synthesis *SynthesisResult `json:"synthesis,omitempty" yaml:"synthesis,omitempty"`

	// Summary is the user-visible assessment text. When Synthesis is nil
	// it is a deterministic template over the entities and top fused
	// results, so the pipeline always produces non-empty output.
	Summary string `json:"summary" yaml:"summary"`

	// ConfidenceScore is the aggregated confidence in [0, 1].
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`

	// EvidenceLevel is the coarse grade derived from confidence, the
	// reference count, and similarity support.
	EvidenceLevel EvidenceRating `json:"evidence_level" yaml:"evidence_level"`

	// DataCompleteness is the weighted input-coverage score in [0, 1].
	DataCompleteness float64 `json:"data_completeness" yaml:"data_completeness"`

	// SourcesConsulted is the total of fused results and references.
	SourcesConsulted int `json:"sources_consulted" yaml:"sources_consulted"`

	// ProcessingTimeMs is the wall-clock duration of the invocation.
	ProcessingTimeMs int64 `json:"processing_time_ms" yaml:"processing_time_ms"`
}
