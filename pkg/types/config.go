// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ExtractorConfig holds settings for the external entity extraction service.
type ExtractorConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the extraction endpoint.
	URL string `json:"url" yaml:"url"`
}

// ClinicalSearchConfig holds settings for the similarity and keyword
// search services.
type ClinicalSearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// SimilarityURL is the vector-similarity search endpoint.
	SimilarityURL string `json:"similarity_url" yaml:"similarity_url"`

	// KeywordURL is the keyword search endpoint.
	KeywordURL string `json:"keyword_url" yaml:"keyword_url"`

	// EmbeddingURL is the endpoint that turns a query string into the
	// vector posted to the similarity service.
	EmbeddingURL string `json:"embedding_url" yaml:"embedding_url"`

	// TopK is the number of hits requested per index (default 10).
	TopK int `json:"top_k" yaml:"top_k"`

	// MinScore is the similarity floor passed to the vector index
	// (default 1.0, the cosine + 1.0 convention's minimum).
	MinScore float64 `json:"min_score" yaml:"min_score"`

	// MaxFused is the maximum length of the fused ranking (default 10).
	MaxFused int `json:"max_fused" yaml:"max_fused"`
}

// SortCriterion selects the literature result ordering.
type SortCriterion string

const (
	SortRelevance SortCriterion = "relevance"
	SortDate      SortCriterion = "date"
	SortCitations SortCriterion = "citations"
)

// LiteratureConfig holds settings for the literature search stage.
type LiteratureConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of merged references (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// LookbackYears restricts results to publications within the window
	// (default 5). Zero disables the date filter.
	LookbackYears int `json:"lookback_years" yaml:"lookback_years"`

	// UseMeSH enables MeSH-term biasing of the PubMed query.
	UseMeSH bool `json:"use_mesh" yaml:"use_mesh"`

	// StudyTypeFilter restricts PubMed results to clinical trials,
	// systematic reviews, meta-analyses, and case reports.
	StudyTypeFilter bool `json:"study_type_filter" yaml:"study_type_filter"`

	// SortBy selects the merged ordering (default relevance).
	SortBy SortCriterion `json:"sort_by" yaml:"sort_by"`

	// EnablePubMed controls whether the PubMed source is used.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// EnableEuropePMC controls whether the Europe PMC source is used.
	EnableEuropePMC bool `json:"enable_europepmc" yaml:"enable_europepmc"`

	// EnableSemanticScholar controls whether the Semantic Scholar source is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// NCBIAPIKey raises the PubMed rate ceiling from 3 to 10 req/s.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// CacheTTL is the literature cache lifetime (default 24h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: "anthropic" or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SynthesisConfig holds settings for the synthesis stage.
type SynthesisConfig struct {
	AIConfig `yaml:",inline"`

	// MaxPromptReferences caps how many references are embedded in the
	// prompt (default 5).
	MaxPromptReferences int `json:"max_prompt_references" yaml:"max_prompt_references"`

	// MaxPromptFused caps how many fused entries are embedded in the
	// prompt (default 5).
	MaxPromptFused int `json:"max_prompt_fused" yaml:"max_prompt_fused"`
}

// StoreConfig holds settings for the assessment history store.
type StoreConfig struct {
	// Dir is the directory holding the SQLite database (default "history").
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of history query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Extractor      ExtractorConfig      `json:"extractor" yaml:"extractor"`
	ClinicalSearch ClinicalSearchConfig `json:"clinical_search" yaml:"clinical_search"`
	Literature     LiteratureConfig     `json:"literature" yaml:"literature"`
	Synthesis      SynthesisConfig      `json:"synthesis" yaml:"synthesis"`
	Store          StoreConfig          `json:"store" yaml:"store"`
}
