// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Demographics holds the patient fields the extractor recognizes in a
// transcript.
type Demographics struct {
	// Age in years. Zero when not mentioned.
	Age int `json:"age,omitempty" yaml:"age,omitempty"`

	// Sex as stated in the transcript (e.g. "female"). Empty when not mentioned.
	Sex string `json:"sex,omitempty" yaml:"sex,omitempty"`
}

// ClinicalEntities is the structured output of the external entity
// extractor for one transcript. The pipeline consumes it as-is.
type ClinicalEntities struct {
	// Symptoms lists extracted symptom mentions.
	Symptoms []string `json:"symptoms" yaml:"symptoms"`

	// Conditions lists extracted condition or diagnosis mentions.
	Conditions []string `json:"conditions" yaml:"conditions"`

	// Severity is the extractor's coarse severity label (e.g. "moderate").
	Severity string `json:"severity,omitempty" yaml:"severity,omitempty"`

	// Queries are the extractor-generated search strings used to drive
	// the similarity and keyword indexes.
	Queries []string `json:"queries" yaml:"queries"`

	// MeSHTerms are controlled vocabulary terms the extractor mapped the
	// mentions to, used to bias literature queries when present.
	MeSHTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`

	// Demographics holds patient fields found in the transcript.
	Demographics Demographics `json:"demographics" yaml:"demographics"`

	// Confidence is the extractor's overall confidence in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// PrimaryQuery returns the first generated query string, or a space-joined
// fallback over symptoms and conditions when the extractor produced none.
func (e ClinicalEntities) PrimaryQuery() string {
	if len(e.Queries) > 0 {
		return e.Queries[0]
	}
	terms := append(append([]string{}, e.Symptoms...), e.Conditions...)
	return joinNonEmpty(terms, " ")
}

// QueryTerms returns the term list used for literature search: conditions
// first (they narrow best), then symptoms.
func (e ClinicalEntities) QueryTerms() []string {
	var terms []string
	for _, t := range append(append([]string{}, e.Conditions...), e.Symptoms...) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
