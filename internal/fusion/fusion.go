// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fusion merges vector-similarity and keyword search hits into one
// ranked, deduplicated list.
// Implements: prd011-fusion (R1-R4);
//
//	docs/ARCHITECTURE § Hybrid Retrieval.
package fusion

import (
	"sort"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// HighConfidenceThreshold is the raw similarity score above which a
// semantic match is trusted over any keyword match. Similarity and keyword
// scores are not on a comparable scale, so a strong semantic hit outranks
// a textual hit even when the textual score is numerically larger.
const HighConfidenceThreshold = 1.3

// Fuse merges the two hit lists into one ranking. Hits sharing a
// normalized label are deduplicated to the best-scoring hit; a keyword hit
// displaces a stored similarity hit only when its raw score is strictly
// greater and the similarity score is not high-confidence. Empty inputs
// yield an empty list, and hits without a label are dropped. The result is
// truncated to maxResults when maxResults > 0.
func Fuse(similarity, keyword []types.SearchHit, maxResults int) []types.FusedResult {
	seen := make(map[string]int) // dedup key -> index in kept
	var kept []types.SearchHit

	for _, h := range similarity {
		key := dedupKey(h.Label)
		if key == "" {
			continue
		}
		h.Kind = types.KindSimilarity
		if idx, ok := seen[key]; ok {
			if h.Score > kept[idx].Score {
				kept[idx] = h
			}
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, h)
	}

	for _, h := range keyword {
		key := dedupKey(h.Label)
		if key == "" {
			continue
		}
		h.Kind = types.KindKeyword
		idx, ok := seen[key]
		if !ok {
			seen[key] = len(kept)
			kept = append(kept, h)
			continue
		}
		prev := kept[idx]
		if prev.Kind == types.KindSimilarity && prev.Score > HighConfidenceThreshold {
			continue
		}
		if h.Score > prev.Score {
			kept[idx] = h
		}
	}

	results := make([]types.FusedResult, 0, len(kept))
	for _, h := range kept {
		fr := types.FusedResult{
			Label: strings.TrimSpace(h.Label),
			Score: h.Score,
			Kind:  h.Kind,
		}
		if h.Kind == types.KindSimilarity {
			// Display percentage under the cosine + 1.0 convention.
			fr.SimilarityPercent = (h.Score - 1) * 100
		}
		results = append(results, fr)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if strongSimilarity(a) && b.Kind == types.KindKeyword {
			return true
		}
		if strongSimilarity(b) && a.Kind == types.KindKeyword {
			return false
		}
		return a.Score > b.Score
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func strongSimilarity(r types.FusedResult) bool {
	return r.Kind == types.KindSimilarity && r.Score > HighConfidenceThreshold
}

// dedupKey lowercases and trims a label to form the dedup key. Empty keys
// mark hits that should be dropped.
func dedupKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
