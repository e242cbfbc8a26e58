// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxAbstractChars caps how much of each abstract is embedded in the
// prompt; past this the prompt cost dominates the call.
const maxAbstractChars = 400

// synthesisPromptTmpl is the prompt sent to the AI backend. It embeds the
// patient picture, the fused clinical search ranking, and the retrieved
// literature, and demands a strict-JSON differential diagnosis.
// Per prd013-synthesis R2.
var synthesisPromptTmpl = template.Must(template.New("synthesis").Parse(`You are a clinical decision support system assisting a physician. Using ONLY the evidence below, produce a differential diagnosis.

Patient:
{{- if .Age}}
- Age: {{.Age}}{{end}}
{{- if .Sex}}
- Sex: {{.Sex}}{{end}}
{{- if .Severity}}
- Reported severity: {{.Severity}}{{end}}
{{- if .Symptoms}}
- Symptoms: {{range $i, $s := .Symptoms}}{{if $i}}, {{end}}{{$s}}{{end}}{{end}}

Clinical knowledge base matches (fused vector + keyword search):
{{- range .Fused}}
- {{.Label}} ({{.Kind}}{{if eq .Kind "similarity"}}, similarity {{printf "%.0f" .SimilarityPercent}}%{{end}}, score {{printf "%.2f" .Score}})
{{- else}}
- none available
{{- end}}

Recent literature:
{{- range $i, $r := .References}}
[{{$r.Year}}] {{$r.Title}}{{if $r.Journal}} — {{$r.Journal}}{{end}}{{if $r.CitationCount}} ({{$r.CitationCount}} citations){{end}}
{{- if $r.Abstract}}
  {{$r.Abstract}}{{end}}
{{- else}}
- none available
{{- end}}

Respond with a single JSON object and no text outside it:
{
  "primary_diagnosis": {"condition": "...", "confidence": 0.0-1.0, "reasoning": "...", "evidence_sources": ["..."]},
  "differentials": [{"condition": "...", "probability": 0.0-1.0, "reasoning": "...", "distinguishing_features": "..."}],
  "evidence_analysis": {"similarity_confidence": 0.0-1.0, "literature_support": 0.0-1.0, "source_concordance": 0.0-1.0, "overall_confidence": 0.0-1.0},
  "recommendations": {"immediate": ["..."], "diagnostic_workup": ["..."], "monitoring": ["..."], "red_flags": ["..."]},
  "citations": [{"title": "...", "year": 2024, "relevance": "...", "evidence_level": "high|moderate|low"}]
}

Cite only the literature listed above. Do not invent references. This output supports, never replaces, clinical judgement.`))

// promptData is the template input.
type promptData struct {
	Age        int
	Sex        string
	Severity   string
	Symptoms   []string
	Fused      []types.FusedResult
	References []types.Reference
}

// buildPrompt renders the synthesis prompt, truncating abstracts and capping
// the fused and reference lists per cfg.
func buildPrompt(entities types.ClinicalEntities, fused []types.FusedResult, refs []types.Reference, cfg types.SynthesisConfig) (string, error) {
	maxRefs := cfg.MaxPromptReferences
	if maxRefs <= 0 {
		maxRefs = 5
	}
	maxFused := cfg.MaxPromptFused
	if maxFused <= 0 {
		maxFused = 5
	}

	if len(fused) > maxFused {
		fused = fused[:maxFused]
	}
	if len(refs) > maxRefs {
		refs = refs[:maxRefs]
	}

	trimmed := make([]types.Reference, len(refs))
	for i, r := range refs {
		if len(r.Abstract) > maxAbstractChars {
			r.Abstract = r.Abstract[:maxAbstractChars] + "..."
		}
		trimmed[i] = r
	}

	data := promptData{
		Age:        entities.Demographics.Age,
		Sex:        entities.Demographics.Sex,
		Severity:   entities.Severity,
		Symptoms:   entities.Symptoms,
		Fused:      fused,
		References: trimmed,
	}

	var buf bytes.Buffer
	if err := synthesisPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering synthesis prompt: %w", err)
	}
	return buf.String(), nil
}
