// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,citationCount,venue,isOpenAccess,url"

// SemanticScholarSource queries the Semantic Scholar Graph API. It covers
// literature PubMed misses (preprints, informatics venues) and supplies
// citation counts for ranking.
type SemanticScholarSource struct {
	Client *http.Client
	APIKey string
}

// Name returns the source identifier.
func (s *SemanticScholarSource) Name() types.LiteratureSource { return types.SourceSemanticScholar }

// Search queries the Semantic Scholar API and maps papers to references.
func (s *SemanticScholarSource) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]types.Reference, error) {
	q := strings.Join(query.Terms, " ")
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(maxResults)},
		"fields": {semanticFields},
	}
	if cfg.LookbackYears > 0 {
		fromYear := time.Now().Year() - cfg.LookbackYears
		params.Set("year", fmt.Sprintf("%d-", fromYear))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	total := len(sr.Data)
	var refs []types.Reference
	for i, paper := range sr.Data {
		r := types.Reference{
			ID:             paper.PaperID,
			DOI:            paper.ExternalIDs.DOI,
			Title:          paper.Title,
			Abstract:       paper.Abstract,
			Journal:        paper.Venue,
			Year:           paper.Year,
			CitationCount:  paper.CitationCount,
			Source:         types.SourceSemanticScholar,
			URL:            paper.URL,
			OpenAccess:     paper.IsOpenAccess,
			RelevanceScore: positionScore(i, total),
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	CitationCount int                 `json:"citationCount"`
	IsOpenAccess  bool                `json:"isOpenAccess"`
	URL           string              `json:"url"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI string `json:"DOI"`
}
