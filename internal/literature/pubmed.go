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
	"github.com/pdiddy/evidence-engine/internal/ratelimit"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// NCBI E-utilities endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	pubmedSearchAPIBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedSummaryAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

// NCBI allows 3 requests/second anonymously and 10/second with an API key.
const (
	pubmedDelayWithKey    = 100 * time.Millisecond
	pubmedDelayWithoutKey = 334 * time.Millisecond
)

// PubMedSource queries PubMed through the NCBI E-utilities. All requests
// pass through a rate-limit queue sized to NCBI's published quota.
type PubMedSource struct {
	Client *http.Client
	APIKey string
	queue  *ratelimit.Queue
}

// NewPubMedSource builds a PubMed source with its own rate-limit queue.
func NewPubMedSource(client *http.Client, apiKey string) *PubMedSource {
	delay := pubmedDelayWithoutKey
	if apiKey != "" {
		delay = pubmedDelayWithKey
	}
	return &PubMedSource{
		Client: client,
		APIKey: apiKey,
		queue:  ratelimit.New(delay),
	}
}

// Name returns the source identifier.
func (s *PubMedSource) Name() types.LiteratureSource { return types.SourcePubMed }

// Close drains the rate-limit queue.
func (s *PubMedSource) Close() { s.queue.Close() }

// Search runs an esearch for matching PMIDs followed by an esummary for
// their metadata. Both calls go through the rate-limit queue.
func (s *PubMedSource) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]types.Reference, error) {
	term := buildPubMedTerm(query, cfg)
	if term == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}

	ids, err := ratelimit.Do(ctx, s.queue, func() ([]string, error) {
		return s.esearch(ctx, term, cfg)
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return ratelimit.Do(ctx, s.queue, func() ([]types.Reference, error) {
		return s.esummary(ctx, ids, cfg)
	})
}

func (s *PubMedSource) esearch(ctx context.Context, term string, cfg types.LiteratureConfig) ([]string, error) {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(maxResults)},
		"retmode": {"json"},
	}
	if cfg.SortBy == types.SortDate {
		params.Set("sort", "pub_date")
	} else {
		params.Set("sort", "relevance")
	}
	if cfg.LookbackYears > 0 {
		params.Set("reldate", strconv.Itoa(cfg.LookbackYears*365))
		params.Set("datetype", "pdat")
	}
	if s.APIKey != "" {
		params.Set("api_key", s.APIKey)
	}

	var er esearchResponse
	if err := s.getJSON(ctx, pubmedSearchAPIBase+"?"+params.Encode(), cfg, &er); err != nil {
		return nil, fmt.Errorf("PubMed esearch: %w", err)
	}
	return er.Result.IDList, nil
}

func (s *PubMedSource) esummary(ctx context.Context, ids []string, cfg types.LiteratureConfig) ([]types.Reference, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	if s.APIKey != "" {
		params.Set("api_key", s.APIKey)
	}

	var raw esummaryResponse
	if err := s.getJSON(ctx, pubmedSummaryAPIBase+"?"+params.Encode(), cfg, &raw); err != nil {
		return nil, fmt.Errorf("PubMed esummary: %w", err)
	}

	// The result object keys documents by UID; the "uids" entry preserves
	// PubMed's relevance ordering.
	var uids []string
	if raw.Result["uids"] != nil {
		if err := json.Unmarshal(raw.Result["uids"], &uids); err != nil {
			return nil, fmt.Errorf("parsing esummary uid list: %w", err)
		}
	}

	total := len(uids)
	var refs []types.Reference
	for i, uid := range uids {
		doc, ok := raw.Result[uid]
		if !ok {
			continue
		}
		var d pubmedDocSum
		if err := json.Unmarshal(doc, &d); err != nil {
			continue
		}

		r := types.Reference{
			ID:             uid,
			Title:          d.Title,
			Journal:        d.FullJournalName,
			Source:         types.SourcePubMed,
			URL:            "https://pubmed.ncbi.nlm.nih.gov/" + uid + "/",
			RelevanceScore: positionScore(i, total),
		}
		for _, a := range d.Authors {
			r.Authors = append(r.Authors, a.Name)
		}
		for _, aid := range d.ArticleIDs {
			if aid.IDType == "doi" {
				r.DOI = aid.Value
			}
		}
		r.Year = parsePubMedYear(d.PubDate)
		refs = append(refs, r)
	}
	return refs, nil
}

func (s *PubMedSource) getJSON(ctx context.Context, reqURL string, cfg types.LiteratureConfig, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// buildPubMedTerm assembles the E-utilities term expression. With MeSH
// enabled, up to three MeSH headings are ANDed and the combination is ORed
// against the two most specific free-text terms, so a bad MeSH mapping
// cannot zero out the search. Study type filters AND onto the whole query.
func buildPubMedTerm(query Query, cfg types.LiteratureConfig) string {
	var core string

	if cfg.UseMeSH && len(query.MeSHTerms) > 0 {
		mesh := query.MeSHTerms
		if len(mesh) > 3 {
			mesh = mesh[:3]
		}
		var meshParts []string
		for _, m := range mesh {
			meshParts = append(meshParts, fmt.Sprintf("%q[MeSH Terms]", m))
		}
		meshExpr := strings.Join(meshParts, " AND ")

		free := query.Terms
		if len(free) > 2 {
			free = free[:2]
		}
		var freeParts []string
		for _, t := range free {
			freeParts = append(freeParts, fmt.Sprintf("%q[Title/Abstract]", t))
		}

		if len(freeParts) > 0 {
			core = fmt.Sprintf("(%s) OR (%s)", meshExpr, strings.Join(freeParts, " AND "))
		} else {
			core = "(" + meshExpr + ")"
		}
	} else {
		var parts []string
		for _, t := range query.Terms {
			parts = append(parts, fmt.Sprintf("%q", t))
		}
		core = strings.Join(parts, " AND ")
	}

	if core == "" {
		return ""
	}

	if cfg.StudyTypeFilter {
		var pts []string
		for _, st := range studyPubTypes {
			pts = append(pts, fmt.Sprintf("%q[Publication Type]", st))
		}
		core = fmt.Sprintf("(%s) AND (%s)", core, strings.Join(pts, " OR "))
	}
	return core
}

// studyPubTypes are the publication types kept when the study-type filter
// is on. These are PubMed's own controlled vocabulary values.
var studyPubTypes = []string{
	"clinical trial",
	"systematic review",
	"meta-analysis",
	"case reports",
}

// parsePubMedYear extracts the year from a docsum pubdate like
// "2023 Jan 15" or "2022 Nov-Dec".
func parsePubMedYear(pubdate string) int {
	fields := strings.Fields(pubdate)
	if len(fields) == 0 {
		return 0
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return year
}

// E-utilities JSON structures.
type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedDocSum struct {
	Title           string         `json:"title"`
	FullJournalName string         `json:"fulljournalname"`
	PubDate         string         `json:"pubdate"`
	Authors         []pubmedAuthor `json:"authors"`
	ArticleIDs      []pubmedArtID  `json:"articleids"`
	PubTypes        []string       `json:"pubtype"`
}

type pubmedAuthor struct {
	Name string `json:"name"`
}

type pubmedArtID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}
