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

// europePMCAPIBase is the Europe PMC REST search endpoint. Declared as a
// var so tests can substitute an httptest server.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMCSource queries the Europe PMC REST API. Europe PMC mirrors
// PubMed plus preprints and returns abstracts and citation counts in one
// round trip (resultType=core), so it needs no summary follow-up call.
type EuropePMCSource struct {
	Client *http.Client
}

// Name returns the source identifier.
func (s *EuropePMCSource) Name() types.LiteratureSource { return types.SourceEuropePMC }

// Search queries Europe PMC and maps the core results to references.
func (s *EuropePMCSource) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]types.Reference, error) {
	q := buildEuropePMCQuery(query, cfg)
	if q == "" {
		return nil, fmt.Errorf("empty Europe PMC query")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"query":      {q},
		"format":     {"json"},
		"resultType": {"core"},
		"pageSize":   {strconv.Itoa(maxResults)},
	}
	if cfg.SortBy == types.SortDate {
		params.Set("sort", "P_PDATE_D desc")
	} else if cfg.SortBy == types.SortCitations {
		params.Set("sort", "CITED desc")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, europePMCAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Europe PMC API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Europe PMC API returned HTTP %d", resp.StatusCode)
	}

	var er europePMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing Europe PMC response: %w", err)
	}

	total := len(er.ResultList.Result)
	var refs []types.Reference
	for i, doc := range er.ResultList.Result {
		r := types.Reference{
			ID:             doc.ID,
			DOI:            doc.DOI,
			Title:          doc.Title,
			Abstract:       doc.AbstractText,
			Journal:        doc.JournalInfo.Journal.Title,
			CitationCount:  doc.CitedByCount,
			Source:         types.SourceEuropePMC,
			OpenAccess:     doc.IsOpenAccess == "Y",
			RelevanceScore: positionScore(i, total),
		}
		if doc.AuthorString != "" {
			for _, a := range strings.Split(doc.AuthorString, ",") {
				if name := strings.TrimSpace(strings.TrimSuffix(a, ".")); name != "" {
					r.Authors = append(r.Authors, name)
				}
			}
		}
		if y, err := strconv.Atoi(doc.PubYear); err == nil {
			r.Year = y
		}
		if doc.DOI != "" {
			r.URL = "https://doi.org/" + doc.DOI
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// buildEuropePMCQuery ANDs the quoted terms and appends a publication-year
// window when a lookback is configured.
func buildEuropePMCQuery(query Query, cfg types.LiteratureConfig) string {
	var parts []string
	for _, t := range query.Terms {
		parts = append(parts, fmt.Sprintf("%q", t))
	}
	if len(parts) == 0 {
		return ""
	}
	q := strings.Join(parts, " AND ")

	if cfg.LookbackYears > 0 {
		fromYear := time.Now().Year() - cfg.LookbackYears
		q = fmt.Sprintf("(%s) AND (PUB_YEAR:[%d TO %d])", q, fromYear, time.Now().Year())
	}
	return q
}

// Europe PMC JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCDoc `json:"result"`
	} `json:"resultList"`
}

type europePMCDoc struct {
	ID           string `json:"id"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	AbstractText string `json:"abstractText"`
	PubYear      string `json:"pubYear"`
	CitedByCount int    `json:"citedByCount"`
	IsOpenAccess string `json:"isOpenAccess"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
}
