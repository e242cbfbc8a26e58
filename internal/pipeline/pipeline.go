// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the phased assessment flow: entity intake, fused
// clinical search, literature retrieval, synthesis, and aggregation. Every
// phase past intake is best-effort; the pipeline always returns a usable
// result and errors only on invalid arguments.
// Implements: prd014-pipeline (R1-R6);
//
//	docs/ARCHITECTURE § Pipeline.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/fusion"
	"github.com/pdiddy/evidence-engine/internal/literature"
	"github.com/pdiddy/evidence-engine/internal/synthesis"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Phase names one pipeline stage, used for logging and timing.
type Phase string

const (
	PhaseIntake      Phase = "intake"
	PhaseFusedSearch Phase = "fused_search"
	PhaseLiterature  Phase = "literature"
	PhaseSynthesis   Phase = "synthesis"
	PhaseAggregate   Phase = "aggregate"
)

// Extractor produces clinical entities from a transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript string, accumulated []string) (types.ClinicalEntities, error)
}

// SimilaritySearcher queries the vector-similarity index.
type SimilaritySearcher interface {
	Search(ctx context.Context, query string, cfg types.ClinicalSearchConfig) ([]types.SearchHit, error)
}

// KeywordSearcher queries the keyword index.
type KeywordSearcher interface {
	Search(ctx context.Context, terms []string, cfg types.ClinicalSearchConfig) ([]types.SearchHit, error)
}

// LiteratureSearcher runs the multi-source literature search.
type LiteratureSearcher interface {
	Search(ctx context.Context, query literature.Query, cfg types.LiteratureConfig) (literature.Result, error)
}

// Synthesizer produces the model-backed differential diagnosis.
type Synthesizer interface {
	Synthesize(ctx context.Context, entities types.ClinicalEntities, fused []types.FusedResult, refs []types.Reference) (*types.SynthesisResult, error)
}

// Deps groups the pipeline's collaborators. Literature and Synthesis may
// be nil; the corresponding phases are then skipped.
type Deps struct {
	Extractor  Extractor
	Similarity SimilaritySearcher
	Keyword    KeywordSearcher
	Literature LiteratureSearcher
	Synthesis  Synthesizer
}

// Engine executes the assessment pipeline.
type Engine struct {
	deps   Deps
	cfg    types.PipelineConfig
	logger *zap.Logger

	literatureEnabled bool
	synthesisEnabled  bool
}

// NewEngine builds a pipeline engine with literature and synthesis enabled
// when their collaborators are present. A nil logger is replaced with a
// no-op one.
func NewEngine(deps Deps, cfg types.PipelineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		deps:              deps,
		cfg:               cfg,
		logger:            logger,
		literatureEnabled: deps.Literature != nil,
		synthesisEnabled:  deps.Synthesis != nil,
	}
}

// SetLiteratureEnabled toggles the literature phase at runtime.
func (e *Engine) SetLiteratureEnabled(on bool) {
	e.literatureEnabled = on && e.deps.Literature != nil
}

// SetSynthesisEnabled toggles the synthesis phase at runtime.
func (e *Engine) SetSynthesisEnabled(on bool) {
	e.synthesisEnabled = on && e.deps.Synthesis != nil
}

// Run executes the pipeline for one transcript. Accumulated symptoms from
// earlier consultation turns are merged into the extracted entities. Any
// phase after intake may fail without failing the run; the result then
// degrades (fewer evidence streams, templated summary).
func (e *Engine) Run(ctx context.Context, transcript string, accumulated []string) (types.PipelineResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return types.PipelineResult{}, fmt.Errorf("transcript is empty")
	}
	if e.deps.Extractor == nil || e.deps.Similarity == nil || e.deps.Keyword == nil {
		return types.PipelineResult{}, fmt.Errorf("pipeline misconfigured: extractor and both search clients are required")
	}
	if e.cfg.ClinicalSearch.MaxFused < 0 || e.cfg.Literature.MaxResults < 0 {
		return types.PipelineResult{}, fmt.Errorf("pipeline misconfigured: result limits must not be negative")
	}

	start := time.Now()
	result := types.PipelineResult{}

	// Intake. A failed extraction degrades to the accumulated symptoms so
	// the remaining phases still have something to work with.
	entities, err := e.deps.Extractor.Extract(ctx, transcript, accumulated)
	if err != nil {
		e.logger.Warn("entity extraction failed, degrading to accumulated symptoms",
			zap.String("phase", string(PhaseIntake)), zap.Error(err))
		entities = types.ClinicalEntities{Symptoms: accumulated}
	}
	result.Entities = entities

	result.FusedResults = e.runFusedSearch(ctx, entities)

	if e.literatureEnabled {
		refs, sources := e.runLiterature(ctx, entities)
		result.References = refs
		result.SourcesSearched = sources
	}

	if e.synthesisEnabled {
		synth, err := e.deps.Synthesis.Synthesize(ctx, entities, result.FusedResults, result.References)
		if err != nil {
			e.logger.Warn("synthesis failed, falling back to templated summary",
				zap.String("phase", string(PhaseSynthesis)), zap.Error(err))
		} else {
			result.Synthesis = synth
		}
	}

	e.aggregate(&result)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.logger.Info("pipeline run complete",
		zap.Int("fused", len(result.FusedResults)),
		zap.Int("references", len(result.References)),
		zap.Bool("synthesized", result.Synthesis != nil),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.String("evidence", string(result.EvidenceLevel)),
		zap.Int64("elapsed_ms", result.ProcessingTimeMs))
	return result, nil
}

// runFusedSearch queries the similarity and keyword indexes in parallel
// and fuses the hits. Either index may fail; the fusion then runs on the
// surviving stream.
func (e *Engine) runFusedSearch(ctx context.Context, entities types.ClinicalEntities) []types.FusedResult {
	query := entities.PrimaryQuery()
	terms := entities.QueryTerms()
	cfg := e.cfg.ClinicalSearch

	var (
		wg      sync.WaitGroup
		simHits []types.SearchHit
		kwHits  []types.SearchHit
		simErr  error
		kwErr   error
	)

	if query != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simHits, simErr = e.deps.Similarity.Search(ctx, query, cfg)
		}()
	}
	if len(terms) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kwHits, kwErr = e.deps.Keyword.Search(ctx, terms, cfg)
		}()
	}
	wg.Wait()

	if simErr != nil {
		e.logger.Warn("similarity search failed",
			zap.String("phase", string(PhaseFusedSearch)), zap.Error(simErr))
		simHits = nil
	}
	if kwErr != nil {
		e.logger.Warn("keyword search failed",
			zap.String("phase", string(PhaseFusedSearch)), zap.Error(kwErr))
		kwHits = nil
	}

	return fusion.Fuse(simHits, kwHits, cfg.MaxFused)
}

// runLiterature runs the multi-source literature search, tolerating total
// failure by returning empty results.
func (e *Engine) runLiterature(ctx context.Context, entities types.ClinicalEntities) ([]types.Reference, []string) {
	q := literature.FromEntities(entities)
	if q.IsEmpty() {
		return nil, nil
	}

	res, err := e.deps.Literature.Search(ctx, q, e.cfg.Literature)
	if err != nil {
		e.logger.Warn("literature search failed",
			zap.String("phase", string(PhaseLiterature)), zap.Error(err))
		return nil, nil
	}

	sources := make([]string, 0, len(res.SourcesSearched))
	for _, s := range res.SourcesSearched {
		sources = append(sources, string(s))
	}
	return res.References, sources
}

// aggregate fills the summary, confidence, evidence rating, and
// completeness fields from whatever the phases produced.
func (e *Engine) aggregate(r *types.PipelineResult) {
	r.SourcesConsulted = len(r.FusedResults) + len(r.References)

	if r.Synthesis != nil {
		r.Summary = synthesisSummary(r.Synthesis)
		r.ConfidenceScore = r.Synthesis.EvidenceAnalysis.OverallConfidence
		r.DataCompleteness = r.Synthesis.Metadata.DataCompleteness
	} else {
		r.Summary = fallbackSummary(r.Entities, r.FusedResults, len(r.References))
		r.ConfidenceScore = fallbackConfidence(r.Entities, r.FusedResults, len(r.References))
		r.DataCompleteness = synthesis.DataCompleteness(r.Entities, r.FusedResults, r.References)
	}

	r.EvidenceLevel = rateEvidence(r.ConfidenceScore, len(r.References), r.FusedResults)
}

// fallbackConfidence derives a confidence score without a synthesis
// result: the extractor's own confidence, boosted for strong fused
// support and for a well-populated literature set.
func fallbackConfidence(entities types.ClinicalEntities, fused []types.FusedResult, refCount int) float64 {
	conf := entities.Confidence
	for _, f := range fused {
		if f.Kind == types.KindSimilarity && f.Score > fusion.HighConfidenceThreshold {
			conf += 0.15
			break
		}
	}
	if refCount >= 3 {
		conf += 0.10
	}
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// rateEvidence grades the overall evidence. High demands confident output
// backed by several publications and at least one similarity match;
// medium needs moderate confidence plus some support from either stream.
func rateEvidence(confidence float64, refCount int, fused []types.FusedResult) types.EvidenceRating {
	simHits := 0
	for _, f := range fused {
		if f.Kind == types.KindSimilarity {
			simHits++
		}
	}

	if confidence > 0.8 && refCount >= 3 && simHits >= 1 {
		return types.RatingHigh
	}
	if confidence > 0.6 && (refCount >= 1 || len(fused) >= 2) {
		return types.RatingMedium
	}
	return types.RatingLow
}

// synthesisSummary renders the model result as user-visible text.
func synthesisSummary(s *types.SynthesisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Primary consideration: %s (confidence %.0f%%). %s",
		s.PrimaryDiagnosis.Condition,
		s.PrimaryDiagnosis.Confidence*100,
		s.PrimaryDiagnosis.Reasoning)
	if len(s.Differentials) > 0 {
		var names []string
		for _, d := range s.Differentials {
			names = append(names, d.Condition)
		}
		fmt.Fprintf(&b, " Differentials to consider: %s.", strings.Join(names, ", "))
	}
	if len(s.Recommendations.Immediate) > 0 {
		fmt.Fprintf(&b, " Immediate steps: %s.", strings.Join(s.Recommendations.Immediate, "; "))
	}
	return b.String()
}

// fallbackSummaryTmpl renders the deterministic summary used when
// synthesis is off or failed.
var fallbackSummaryTmpl = template.Must(template.New("fallback").Parse(
	`Preliminary assessment{{if .Symptoms}} for {{.Symptoms}}{{end}}.` +
		`{{if .Matches}} Closest knowledge-base matches: {{.Matches}}.{{else}} No knowledge-base matches were found.{{end}}` +
		`{{if .RefCount}} {{.RefCount}} supporting publications retrieved.{{end}}` +
		` This output supports, never replaces, clinical judgement.`))

// fallbackSummary produces non-empty text from the entities and the top
// fused matches alone.
func fallbackSummary(entities types.ClinicalEntities, fused []types.FusedResult, refCount int) string {
	var matches []string
	for i, f := range fused {
		if i == 3 {
			break
		}
		matches = append(matches, f.Label)
	}

	data := struct {
		Symptoms string
		Matches  string
		RefCount int
	}{
		Symptoms: strings.Join(entities.Symptoms, ", "),
		Matches:  strings.Join(matches, ", "),
		RefCount: refCount,
	}

	var buf bytes.Buffer
	if err := fallbackSummaryTmpl.Execute(&buf, data); err != nil {
		// The template is static; execution over plain strings cannot fail.
		return "Preliminary assessment unavailable."
	}
	return buf.String()
}
