// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/clinsearch"
	"github.com/pdiddy/evidence-engine/internal/entities"
	"github.com/pdiddy/evidence-engine/internal/literature"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/synthesis"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func init() {
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.user_agent", "evidence-engine/0.1")

	viper.SetDefault("extractor.url", "http://localhost:8081/extract")

	viper.SetDefault("clinical_search.similarity_url", "http://localhost:8082/similarity")
	viper.SetDefault("clinical_search.keyword_url", "http://localhost:8083/keyword")
	viper.SetDefault("clinical_search.embedding_url", "http://localhost:8082/embed")
	viper.SetDefault("clinical_search.top_k", 10)
	viper.SetDefault("clinical_search.min_score", 1.0)
	viper.SetDefault("clinical_search.max_fused", 10)

	viper.SetDefault("literature.max_results", 10)
	viper.SetDefault("literature.lookback_years", 5)
	viper.SetDefault("literature.use_mesh", true)
	viper.SetDefault("literature.study_type_filter", false)
	viper.SetDefault("literature.sort_by", "relevance")
	viper.SetDefault("literature.enable_pubmed", true)
	viper.SetDefault("literature.enable_europepmc", true)
	viper.SetDefault("literature.enable_semantic_scholar", true)
	viper.SetDefault("literature.cache_ttl", "24h")

	viper.SetDefault("synthesis.provider", "anthropic")
	viper.SetDefault("synthesis.model", "claude-sonnet-4-5")
	viper.SetDefault("synthesis.max_retries", 3)
	viper.SetDefault("synthesis.max_prompt_references", 5)
	viper.SetDefault("synthesis.max_prompt_fused", 5)

	viper.SetDefault("store.dir", "history")
	viper.SetDefault("store.max_results", 20)
}

// pipelineConfig assembles the stage configurations from viper, with API
// keys filled from .secrets/.
func pipelineConfig() types.PipelineConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}

	return types.PipelineConfig{
		Extractor: types.ExtractorConfig{
			HTTPConfig: httpCfg,
			URL:        viper.GetString("extractor.url"),
		},
		ClinicalSearch: types.ClinicalSearchConfig{
			HTTPConfig:    httpCfg,
			SimilarityURL: viper.GetString("clinical_search.similarity_url"),
			KeywordURL:    viper.GetString("clinical_search.keyword_url"),
			EmbeddingURL:  viper.GetString("clinical_search.embedding_url"),
			TopK:          viper.GetInt("clinical_search.top_k"),
			MinScore:      viper.GetFloat64("clinical_search.min_score"),
			MaxFused:      viper.GetInt("clinical_search.max_fused"),
		},
		Literature: types.LiteratureConfig{
			HTTPConfig:            httpCfg,
			MaxResults:            viper.GetInt("literature.max_results"),
			LookbackYears:         viper.GetInt("literature.lookback_years"),
			UseMeSH:               viper.GetBool("literature.use_mesh"),
			StudyTypeFilter:       viper.GetBool("literature.study_type_filter"),
			SortBy:                types.SortCriterion(viper.GetString("literature.sort_by")),
			EnablePubMed:          viper.GetBool("literature.enable_pubmed"),
			EnableEuropePMC:       viper.GetBool("literature.enable_europepmc"),
			EnableSemanticScholar: viper.GetBool("literature.enable_semantic_scholar"),
			NCBIAPIKey:            secretDefault("ncbi-api-key", viper.GetString("literature.ncbi_api_key")),
			SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("literature.semantic_scholar_api_key")),
			CacheTTL:              viper.GetDuration("literature.cache_ttl"),
		},
		Synthesis: types.SynthesisConfig{
			AIConfig: types.AIConfig{
				Provider:   viper.GetString("synthesis.provider"),
				Model:      viper.GetString("synthesis.model"),
				MaxRetries: viper.GetInt("synthesis.max_retries"),
			},
			MaxPromptReferences: viper.GetInt("synthesis.max_prompt_references"),
			MaxPromptFused:      viper.GetInt("synthesis.max_prompt_fused"),
		},
		Store: types.StoreConfig{
			Dir:        viper.GetString("store.dir"),
			MaxResults: viper.GetInt("store.max_results"),
		},
	}
}

// httpClient builds the shared HTTP client for all external calls.
func httpClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// synthesisBackend picks the AI backend for the configured provider, with
// the API key resolved from .secrets/.
func synthesisBackend(cfg types.SynthesisConfig) (synthesis.AIBackend, error) {
	switch cfg.Provider {
	case "anthropic", "":
		key := secretDefault("anthropic-api-key", cfg.APIKey)
		if key == "" {
			return nil, fmt.Errorf("no Anthropic API key: add .secrets/anthropic-api-key")
		}
		return &synthesis.AnthropicBackend{APIKey: key, Model: cfg.Model}, nil
	case "openai":
		key := secretDefault("openai-api-key", cfg.APIKey)
		if key == "" {
			return nil, fmt.Errorf("no OpenAI API key: add .secrets/openai-api-key")
		}
		return synthesis.NewOpenAIBackend(key, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
	}
}

// buildPipeline wires the full engine from config. The returned closer
// drains the literature rate-limit queue.
func buildPipeline(cfg types.PipelineConfig, withLiterature, withSynthesis bool) (*pipeline.Engine, func(), error) {
	client := httpClient(cfg.Extractor.HTTPConfig)

	deps := pipeline.Deps{
		Extractor: &entities.Client{HTTP: client, URL: cfg.Extractor.URL},
		Similarity: &clinsearch.SimilarityClient{
			Client: client,
			URL:    cfg.ClinicalSearch.SimilarityURL,
			Embedder: &clinsearch.HTTPEmbedder{
				Client: client,
				URL:    cfg.ClinicalSearch.EmbeddingURL,
			},
		},
		Keyword: &clinsearch.KeywordClient{
			Client: client,
			URL:    cfg.ClinicalSearch.KeywordURL,
		},
	}

	closer := func() {}
	if withLiterature {
		sources, closeSources := literature.BuildSources(client, cfg.Literature)
		if len(sources) > 0 {
			deps.Literature = literature.NewEngine(sources, cfg.Literature, logger)
			closer = closeSources
		}
	}

	if withSynthesis {
		backend, err := synthesisBackend(cfg.Synthesis)
		if err != nil {
			closer()
			return nil, nil, err
		}
		deps.Synthesis = synthesis.NewEngine(backend, cfg.Synthesis, logger)
	}

	return pipeline.NewEngine(deps, cfg, logger), closer, nil
}
