// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// LiteratureSource identifies which repository provided a reference.
type LiteratureSource string

const (
	SourcePubMed          LiteratureSource = "pubmed"
	SourceEuropePMC       LiteratureSource = "europepmc"
	SourceSemanticScholar LiteratureSource = "semantic_scholar"
)

// Reference is a bibliographic record returned by a literature repository.
// Immutable once constructed.
type Reference struct {
	// ID is the source-native identifier (PMID, Europe PMC ID, or
	// Semantic Scholar paper ID).
	ID string `json:"id" yaml:"id"`

	// DOI is the bare DOI without the https://doi.org/ prefix, when known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the article authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Journal is the publishing journal or venue.
	Journal string `json:"journal" yaml:"journal"`

	// Year is the publication year.
	Year int `json:"year" yaml:"year"`

	// Abstract is the article abstract, possibly empty for sources that
	// do not return one.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// RelevanceScore is the source-relative relevance in [0, 1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// CitationCount is the number of citing works. Zero when the source
	// does not report one.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// Source identifies the producing repository.
	Source LiteratureSource `json:"source" yaml:"source"`

	// URL points at the article landing page.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// OpenAccess reports whether the full text is openly available.
	OpenAccess bool `json:"open_access" yaml:"open_access"`
}
