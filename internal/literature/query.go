// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"net/http"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxQueryTerms caps the free-text terms sent to the APIs; past this the
// boolean queries get restrictive enough to return nothing.
const maxQueryTerms = 5

// FromEntities builds a literature query from extracted clinical entities.
// Suspected conditions lead, symptoms fill the remaining slots.
func FromEntities(e types.ClinicalEntities) Query {
	terms := e.QueryTerms()
	if len(terms) > maxQueryTerms {
		terms = terms[:maxQueryTerms]
	}
	return Query{Terms: terms, MeSHTerms: e.MeSHTerms}
}

// BuildSources constructs the sources enabled in cfg. The caller owns the
// returned closer and must call it to drain the PubMed rate-limit queue.
func BuildSources(client *http.Client, cfg types.LiteratureConfig) ([]Source, func()) {
	var sources []Source
	closer := func() {}

	if cfg.EnablePubMed {
		pm := NewPubMedSource(client, cfg.NCBIAPIKey)
		sources = append(sources, pm)
		closer = pm.Close
	}
	if cfg.EnableEuropePMC {
		sources = append(sources, &EuropePMCSource{Client: client})
	}
	if cfg.EnableSemanticScholar {
		sources = append(sources, &SemanticScholarSource{Client: client, APIKey: cfg.SemanticScholarAPIKey})
	}
	return sources, closer
}
