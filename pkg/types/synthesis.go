// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvidenceLevel grades how strongly the literature supports one citation.
// Per prd013-synthesis R4.3.
type EvidenceLevel string

const (
	EvidenceHigh     EvidenceLevel = "high"
	EvidenceModerate EvidenceLevel = "moderate"
	EvidenceLow      EvidenceLevel = "low"
)

// PrimaryDiagnosis is the model's leading diagnosis with its supporting
// rationale.
type PrimaryDiagnosis struct {
	// Condition is the diagnosis name.
	Condition string `json:"condition" yaml:"condition"`

	// Confidence is the model's confidence in [0, 1], clamped at the
	// parse boundary.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Reasoning is the model's free-text justification.
	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// EvidenceSources names the evidence the model relied on.
	EvidenceSources []string `json:"evidence_sources" yaml:"evidence_sources"`
}

// Differential is one alternative diagnosis.
type Differential struct {
	Condition string `json:"condition" yaml:"condition"`

	// Probability in [0, 1], clamped at the parse boundary.
	Probability float64 `json:"probability" yaml:"probability"`

	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// DistinguishingFeatures describes what would separate this
	// diagnosis from the primary one.
	DistinguishingFeatures string `json:"distinguishing_features" yaml:"distinguishing_features"`
}

// EvidenceAnalysis summarizes how the evidence streams agree. All fields
// are in [0, 1].
type EvidenceAnalysis struct {
	SimilarityConfidence float64 `json:"similarity_confidence" yaml:"similarity_confidence"`
	LiteratureSupport    float64 `json:"literature_support" yaml:"literature_support"`
	SourceConcordance    float64 `json:"source_concordance" yaml:"source_concordance"`
	OverallConfidence    float64 `json:"overall_confidence" yaml:"overall_confidence"`
}

// Recommendations groups the model's suggested next steps.
type Recommendations struct {
	Immediate        []string `json:"immediate" yaml:"immediate"`
	DiagnosticWorkup []string `json:"diagnostic_workup" yaml:"diagnostic_workup"`
	Monitoring       []string `json:"monitoring" yaml:"monitoring"`
	RedFlags         []string `json:"red_flags" yaml:"red_flags"`
}

// SynthesisCitation links a model citation back to a retrieved Reference.
// Citations always point at real retrieved references, never at titles the
// model invented.
type SynthesisCitation struct {
	Reference     Reference     `json:"reference" yaml:"reference"`
	Relevance     string        `json:"relevance" yaml:"relevance"`
	EvidenceLevel EvidenceLevel `json:"evidence_level" yaml:"evidence_level"`
}

// SynthesisMetadata records bookkeeping for one synthesis run.
type SynthesisMetadata struct {
	// SourcesConsulted counts fused results plus references fed to the model.
	SourcesConsulted int `json:"sources_consulted" yaml:"sources_consulted"`

	// SynthesisTimeMs is the wall-clock duration of the model call.
	SynthesisTimeMs int64 `json:"synthesis_time_ms" yaml:"synthesis_time_ms"`

	// DataCompleteness is the weighted input-coverage score in [0, 1].
	DataCompleteness float64 `json:"data_completeness" yaml:"data_completeness"`
}

// SynthesisResult is the validated, clamped differential diagnosis produced
// by the synthesis engine.
type SynthesisResult struct {
	PrimaryDiagnosis PrimaryDiagnosis    `json:"primary_diagnosis" yaml:"primary_diagnosis"`
	Differentials    []Differential      `json:"differentials" yaml:"differentials"`
	EvidenceAnalysis EvidenceAnalysis    `json:"evidence_analysis" yaml:"evidence_analysis"`
	Recommendations  Recommendations     `json:"recommendations" yaml:"recommendations"`
	Citations        []SynthesisCitation `json:"citations" yaml:"citations"`
	Metadata         SynthesisMetadata   `json:"metadata" yaml:"metadata"`
}
