// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package literature queries medical literature APIs and returns unified,
// deduplicated references. Sources fan out concurrently; a failing source
// degrades the result instead of aborting the search.
// Implements: prd012-literature (R1-R6);
//
//	docs/ARCHITECTURE § Evidence Retrieval.
package literature

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/evcache"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Source searches a single literature API. Each source (PubMed, Europe PMC,
// Semantic Scholar) implements this interface per the Strategy pattern.
type Source interface {
	Name() types.LiteratureSource
	Search(ctx context.Context, query Query, cfg types.LiteratureConfig) ([]types.Reference, error)
}

// Query holds the clinical search terms. Terms are ordered most-specific
// first (suspected conditions before symptoms).
type Query struct {
	Terms     []string
	MeSHTerms []string
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return len(q.Terms) == 0 && len(q.MeSHTerms) == 0
}

// Result holds the merged references plus per-source outcome detail.
type Result struct {
	References      []types.Reference        `json:"references"`
	TotalFound      int                      `json:"totalFound"`
	SourcesSearched []types.LiteratureSource `json:"sourcesSearched"`
	SourceErrors    []string                 `json:"sourceErrors,omitempty"`
	FromCache       bool                     `json:"fromCache"`
}

// Engine orchestrates the configured sources behind a TTL cache.
type Engine struct {
	sources []Source
	cache   *evcache.Cache[Result]
	logger  *zap.Logger
}

// NewEngine builds an engine over the given sources. A nil logger is
// replaced with a no-op one.
func NewEngine(sources []Source, cfg types.LiteratureConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sources: sources,
		cache:   evcache.New[Result](cfg.CacheTTL, evcache.DefaultSweepThreshold),
		logger:  logger,
	}
}

// Search fans the query out to every source concurrently, merges and
// deduplicates the references, orders them per cfg.SortBy, and truncates to
// cfg.MaxResults. Identical query+config pairs within the cache TTL are
// served from cache without touching the APIs. Errors are reserved for
// caller mistakes (empty query, no sources, negative MaxResults); source
// failures only degrade the result, down to an empty one carrying
// SourceErrors when every source fails.
func (e *Engine) Search(ctx context.Context, query Query, cfg types.LiteratureConfig) (Result, error) {
	if query.IsEmpty() {
		return Result{}, fmt.Errorf("literature query is empty")
	}
	if len(e.sources) == 0 {
		return Result{}, fmt.Errorf("no literature sources configured")
	}
	if cfg.MaxResults < 0 {
		return Result{}, fmt.Errorf("maxResults must not be negative: %d", cfg.MaxResults)
	}

	key := cacheKey(query, cfg)
	if cached, ok := e.cache.Get(key); ok {
		cached.FromCache = true
		e.logger.Debug("literature cache hit", zap.String("key", key[:12]))
		return cached, nil
	}

	type sourceResult struct {
		refs []types.Reference
		err  error
		name types.LiteratureSource
	}

	ch := make(chan sourceResult, len(e.sources))
	var wg sync.WaitGroup
	for _, s := range e.sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()
			refs, err := s.Search(ctx, query, cfg)
			ch <- sourceResult{refs: refs, err: err, name: s.Name()}
		}(s)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.Reference
	var searched []types.LiteratureSource
	var sourceErrors []string
	for sr := range ch {
		if sr.err != nil {
			sourceErrors = append(sourceErrors, fmt.Sprintf("%s: %v", sr.name, sr.err))
			e.logger.Warn("literature source failed",
				zap.String("source", string(sr.name)), zap.Error(sr.err))
			continue
		}
		searched = append(searched, sr.name)
		all = append(all, sr.refs...)
	}

	// Every source failing is an availability problem, not a caller error:
	// return an empty result carrying the per-source errors, and do not
	// cache it so the next call retries the APIs.
	if len(searched) == 0 && len(sourceErrors) > 0 {
		e.logger.Warn("all literature sources failed",
			zap.Strings("errors", sourceErrors))
		return Result{SourceErrors: sourceErrors}, nil
	}

	total := len(all)
	deduped := deduplicate(all)
	sortReferences(deduped, cfg.SortBy)
	if cfg.MaxResults > 0 && len(deduped) > cfg.MaxResults {
		deduped = deduped[:cfg.MaxResults]
	}

	sort.Slice(searched, func(i, j int) bool { return searched[i] < searched[j] })

	result := Result{
		References:      deduped,
		TotalFound:      total,
		SourcesSearched: searched,
		SourceErrors:    sourceErrors,
	}
	e.cache.Set(key, result)
	return result, nil
}

// CacheLen reports the number of cached query results, expired entries
// included until the next sweep.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// cacheKey derives a stable cache key from the query terms and the config
// knobs that change what the APIs return. Free-text and MeSH terms are
// tagged so moving a term between the lists changes the key; the source
// query builders treat the two lists very differently.
func cacheKey(query Query, cfg types.LiteratureConfig) string {
	parts := make([]string, 0, len(query.Terms)+len(query.MeSHTerms)+5)
	for _, t := range query.Terms {
		parts = append(parts, "t:"+t)
	}
	for _, m := range query.MeSHTerms {
		parts = append(parts, "m:"+m)
	}
	parts = append(parts,
		strconv.Itoa(cfg.MaxResults),
		strconv.Itoa(cfg.LookbackYears),
		strconv.FormatBool(cfg.UseMeSH),
		strconv.FormatBool(cfg.StudyTypeFilter),
		string(cfg.SortBy),
	)
	return evcache.Key(parts...)
}

// deduplicate merges references that share a DOI or a normalized title.
// The first occurrence wins; later duplicates fill its empty fields.
func deduplicate(refs []types.Reference) []types.Reference {
	seen := make(map[string]int)
	var deduped []types.Reference

	for _, r := range refs {
		var keys []string
		if r.DOI != "" {
			keys = append(keys, "doi:"+strings.ToLower(r.DOI))
		}
		if t := normalizeTitle(r.Title); t != "" {
			keys = append(keys, "title:"+t)
		}

		merged := false
		for _, k := range keys {
			if idx, ok := seen[k]; ok {
				mergeInto(&deduped[idx], r)
				merged = true
				break
			}
		}
		if merged {
			continue
		}

		idx := len(deduped)
		deduped = append(deduped, r)
		for _, k := range keys {
			seen[k] = idx
		}
	}
	return deduped
}

// mergeInto fills empty fields of dst from src and keeps the higher
// relevance score and citation count.
func mergeInto(dst *types.Reference, src types.Reference) {
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Journal == "" {
		dst.Journal = src.Journal
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if src.CitationCount > dst.CitationCount {
		dst.CitationCount = src.CitationCount
	}
	dst.OpenAccess = dst.OpenAccess || src.OpenAccess
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// sortReferences orders refs by the requested criterion, falling back to
// relevance. Ties break toward the higher relevance score.
func sortReferences(refs []types.Reference, by types.SortCriterion) {
	switch by {
	case types.SortDate:
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].Year != refs[j].Year {
				return refs[i].Year > refs[j].Year
			}
			return refs[i].RelevanceScore > refs[j].RelevanceScore
		})
	case types.SortCitations:
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].CitationCount != refs[j].CitationCount {
				return refs[i].CitationCount > refs[j].CitationCount
			}
			return refs[i].RelevanceScore > refs[j].RelevanceScore
		})
	default:
		sort.SliceStable(refs, func(i, j int) bool {
			return refs[i].RelevanceScore > refs[j].RelevanceScore
		})
	}
}

// positionScore converts a rank within an API's own relevance ordering into
// a score in [0.1, 1.0].
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
