// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/evidence-engine/internal/literature"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// --- fakes ---

type fakeExtractor struct {
	entities types.ClinicalEntities
	err      error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ []string) (types.ClinicalEntities, error) {
	return f.entities, f.err
}

type fakeSimilarity struct {
	hits []types.SearchHit
	err  error
}

func (f *fakeSimilarity) Search(_ context.Context, _ string, _ types.ClinicalSearchConfig) ([]types.SearchHit, error) {
	return f.hits, f.err
}

type fakeKeyword struct {
	hits []types.SearchHit
	err  error
}

func (f *fakeKeyword) Search(_ context.Context, _ []string, _ types.ClinicalSearchConfig) ([]types.SearchHit, error) {
	return f.hits, f.err
}

type fakeLiterature struct {
	result literature.Result
	err    error
	calls  int
}

func (f *fakeLiterature) Search(_ context.Context, _ literature.Query, _ types.LiteratureConfig) (literature.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeSynthesizer struct {
	result *types.SynthesisResult
	err    error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ types.ClinicalEntities, _ []types.FusedResult, _ []types.Reference) (*types.SynthesisResult, error) {
	return f.result, f.err
}

// --- fixtures ---

func fullEntities() types.ClinicalEntities {
	return types.ClinicalEntities{
		Symptoms:     []string{"shortness of breath", "leg swelling"},
		Conditions:   []string{"heart failure"},
		Severity:     "moderate",
		Queries:      []string{"dyspnea edema elderly"},
		Demographics: types.Demographics{Age: 72, Sex: "female"},
		Confidence:   0.7,
	}
}

func strongSimHits() []types.SearchHit {
	return []types.SearchHit{
		{Kind: types.KindSimilarity, Label: "Heart Failure", Score: 1.42},
		{Kind: types.KindSimilarity, Label: "Pneumonia", Score: 1.18},
	}
}

func keywordHits() []types.SearchHit {
	return []types.SearchHit{
		{Kind: types.KindKeyword, Label: "Cardiomyopathy", Score: 8.1},
	}
}

func threeRefs() []types.Reference {
	return []types.Reference{
		{ID: "1", Title: "A", Year: 2024},
		{ID: "2", Title: "B", Year: 2023},
		{ID: "3", Title: "C", Year: 2023},
	}
}

func synthResult(overall float64) *types.SynthesisResult {
	return &types.SynthesisResult{
		PrimaryDiagnosis: types.PrimaryDiagnosis{
			Condition:  "Congestive heart failure",
			Confidence: 0.78,
			Reasoning:  "Dyspnea with edema.",
		},
		Differentials:    []types.Differential{{Condition: "Pneumonia", Probability: 0.3}},
		EvidenceAnalysis: types.EvidenceAnalysis{OverallConfidence: overall},
		Recommendations:  types.Recommendations{Immediate: []string{"BNP"}},
		Metadata:         types.SynthesisMetadata{DataCompleteness: 0.8},
	}
}

func fullDeps() Deps {
	return Deps{
		Extractor:  &fakeExtractor{entities: fullEntities()},
		Similarity: &fakeSimilarity{hits: strongSimHits()},
		Keyword:    &fakeKeyword{hits: keywordHits()},
		Literature: &fakeLiterature{result: literature.Result{
			References:      threeRefs(),
			TotalFound:      3,
			SourcesSearched: []types.LiteratureSource{types.SourcePubMed, types.SourceEuropePMC},
		}},
		Synthesis: &fakeSynthesizer{result: synthResult(0.85)},
	}
}

// --- tests ---

func TestRunFullPipeline(t *testing.T) {
	e := NewEngine(fullDeps(), types.PipelineConfig{}, nil)

	result, err := e.Run(context.Background(), "patient reports trouble breathing", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.FusedResults) != 3 {
		t.Errorf("got %d fused results, want 3", len(result.FusedResults))
	}
	if result.FusedResults[0].Label != "Heart Failure" {
		t.Errorf("strong similarity should rank first: %+v", result.FusedResults[0])
	}
	if len(result.References) != 3 {
		t.Errorf("got %d references, want 3", len(result.References))
	}
	if len(result.SourcesSearched) != 2 {
		t.Errorf("sourcesSearched = %v", result.SourcesSearched)
	}
	if result.Synthesis == nil {
		t.Fatal("synthesis result missing")
	}
	if result.ConfidenceScore != 0.85 {
		t.Errorf("confidence = %v, want synthesis overall 0.85", result.ConfidenceScore)
	}
	if result.EvidenceLevel != types.RatingHigh {
		t.Errorf("evidence = %s, want high", result.EvidenceLevel)
	}
	if result.DataCompleteness != 0.8 {
		t.Errorf("dataCompleteness = %v, want synthesis metadata value", result.DataCompleteness)
	}
	if result.SourcesConsulted != 6 {
		t.Errorf("sourcesConsulted = %d, want 6", result.SourcesConsulted)
	}
	if !strings.Contains(result.Summary, "Congestive heart failure") {
		t.Errorf("summary = %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "Pneumonia") {
		t.Errorf("summary should name differentials: %q", result.Summary)
	}
}

func TestRunEmptyTranscript(t *testing.T) {
	e := NewEngine(fullDeps(), types.PipelineConfig{}, nil)
	if _, err := e.Run(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestRunMissingCoreDeps(t *testing.T) {
	e := NewEngine(Deps{Extractor: &fakeExtractor{}}, types.PipelineConfig{}, nil)
	if _, err := e.Run(context.Background(), "transcript", nil); err == nil {
		t.Fatal("expected error when search clients are missing")
	}
}

func TestRunRejectsNegativeLimits(t *testing.T) {
	cfg := types.PipelineConfig{}
	cfg.ClinicalSearch.MaxFused = -1
	e := NewEngine(fullDeps(), cfg, nil)
	if _, err := e.Run(context.Background(), "transcript", nil); err == nil {
		t.Fatal("expected error for negative maxFused")
	}

	cfg = types.PipelineConfig{}
	cfg.Literature.MaxResults = -1
	e = NewEngine(fullDeps(), cfg, nil)
	if _, err := e.Run(context.Background(), "transcript", nil); err == nil {
		t.Fatal("expected error for negative literature maxResults")
	}
}

func TestRunExtractorFailureDegrades(t *testing.T) {
	deps := fullDeps()
	deps.Extractor = &fakeExtractor{err: fmt.Errorf("extractor down")}
	e := NewEngine(deps, types.PipelineConfig{}, nil)

	result, err := e.Run(context.Background(), "transcript", []string{"chest pain"})
	if err != nil {
		t.Fatalf("Run should survive extractor failure: %v", err)
	}
	if len(result.Entities.Symptoms) != 1 || result.Entities.Symptoms[0] != "chest pain" {
		t.Errorf("entities should degrade to accumulated symptoms: %+v", result.Entities)
	}
	if result.Summary == "" {
		t.Error("summary must never be empty")
	}
}

func TestRunSearchFailuresTolerated(t *testing.T) {
	deps := fullDeps()
	deps.Similarity = &fakeSimilarity{err: fmt.Errorf("index down")}
	e := NewEngine(deps, types.PipelineConfig{}, nil)

	result, err := e.Run(context.Background(), "transcript", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Keyword hits survive the similarity outage.
	if len(result.FusedResults) != 1 || result.FusedResults[0].Label != "Cardiomyopathy" {
		t.Errorf("fused = %+v", result.FusedResults)
	}

	deps = fullDeps()
	deps.Similarity = &fakeSimilarity{err: fmt.Errorf("index down")}
	deps.Keyword = &fakeKeyword{err: fmt.Errorf("also down")}
	e = NewEngine(deps, types.PipelineConfig{}, nil)

	result, err = e.Run(context.Background(), "transcript", nil)
	if err != nil {
		t.Fatalf("Run should survive both search failures: %v", err)
	}
	if len(result.FusedResults) != 0 {
		t.Errorf("fused = %+v, want empty", result.FusedResults)
	}
	if result.Summary == "" {
		t.Error("summary must never be empty")
	}
}

func TestRunLiteratureFailureTolerated(t *testing.T) {
	deps := fullDeps()
	deps.Literature = &fakeLiterature{err: fmt.Errorf("all sources failed")}
	e := NewEngine(deps, types.PipelineConfig{}, nil)

	result, err := e.Run(context.Background(), "transcript", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.References) != 0 {
		t.Errorf("references = %v, want empty", result.References)
	}
	if result.EvidenceLevel == types.RatingHigh {
		t.Error("evidence cannot be high without references")
	}
}

func TestRunLiteratureDisabled(t *testing.T) {
	deps := fullDeps()
	lit := deps.Literature.(*fakeLiterature)
	deps.Synthesis = &fakeSynthesizer{result: synthResult(0.9)}
	e := NewEngine(deps, types.PipelineConfig{}, nil)
	e.SetLiteratureEnabled(false)

	result, err := e.Run(context.Background(), "transcript", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lit.calls != 0 {
		t.Errorf("literature searched %d times while disabled", lit.calls)
	}
	// Without references the evidence grade cannot reach high, whatever
	// the synthesis confidence says.
	if result.EvidenceLevel == types.RatingHigh {
		t.Errorf("evidence = %s with literature disabled", result.EvidenceLevel)
	}
}

func TestRunSynthesisFailureFallsBack(t *testing.T) {
	deps := fullDeps()
	deps.Synthesis = &fakeSynthesizer{err: fmt.Errorf("model overloaded")}
	e := NewEngine(deps, types.PipelineConfig{}, nil)

	result, err := e.Run(context.Background(), "transcript", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Synthesis != nil {
		t.Error("synthesis should be nil after failure")
	}
	if !strings.Contains(result.Summary, "Heart Failure") {
		t.Errorf("fallback summary should name top matches: %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "clinical judgement") {
		t.Errorf("fallback summary missing caveat: %q", result.Summary)
	}

	// Extractor 0.7 + strong similarity 0.15 + three references 0.10.
	if diff := result.ConfidenceScore - 0.95; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fallback confidence = %v, want 0.95", result.ConfidenceScore)
	}
	if result.EvidenceLevel != types.RatingHigh {
		t.Errorf("evidence = %s, want high", result.EvidenceLevel)
	}
}

func TestFallbackConfidenceCapped(t *testing.T) {
	entities := fullEntities()
	entities.Confidence = 0.95
	got := fallbackConfidence(entities,
		[]types.FusedResult{{Kind: types.KindSimilarity, Score: 1.5}}, 5)
	if got != 1.0 {
		t.Errorf("confidence = %v, want capped 1.0", got)
	}
}

func TestRateEvidence(t *testing.T) {
	sim := []types.FusedResult{{Kind: types.KindSimilarity, Score: 1.4}}
	kw := []types.FusedResult{
		{Kind: types.KindKeyword, Score: 8},
		{Kind: types.KindKeyword, Score: 5},
	}

	tests := []struct {
		name       string
		confidence float64
		refs       int
		fused      []types.FusedResult
		want       types.EvidenceRating
	}{
		{"high", 0.85, 3, sim, types.RatingHigh},
		{"high confidence but no similarity hit", 0.85, 3, kw, types.RatingMedium},
		{"high confidence but too few refs", 0.85, 2, sim, types.RatingMedium},
		{"medium via refs", 0.65, 1, nil, types.RatingMedium},
		{"medium via fused", 0.65, 0, kw, types.RatingMedium},
		{"low confidence", 0.5, 5, sim, types.RatingLow},
		{"medium confidence without support", 0.65, 0, sim, types.RatingLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rateEvidence(tt.confidence, tt.refs, tt.fused); got != tt.want {
				t.Errorf("rateEvidence = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCaseFileRoundTrip(t *testing.T) {
	e := NewEngine(fullDeps(), types.PipelineConfig{}, nil)
	result, err := e.Run(context.Background(), "patient reports trouble breathing", []string{"fatigue"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "case.yaml")
	if err := WriteCaseFile(path, "patient reports trouble breathing", []string{"fatigue"}, result); err != nil {
		t.Fatalf("WriteCaseFile: %v", err)
	}

	cf, err := ReadCaseFile(path)
	if err != nil {
		t.Fatalf("ReadCaseFile: %v", err)
	}
	if cf.Transcript != "patient reports trouble breathing" {
		t.Errorf("transcript = %q", cf.Transcript)
	}
	if cf.Result.Summary != result.Summary {
		t.Errorf("summary round trip mismatch")
	}
	if cf.Result.EvidenceLevel != result.EvidenceLevel {
		t.Errorf("evidence round trip mismatch")
	}
	if cf.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
