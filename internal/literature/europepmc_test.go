// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestEuropePMCSearch(t *testing.T) {
	var gotQuery, gotResultType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotResultType = r.URL.Query().Get("resultType")
		w.Write([]byte(`{
			"hitCount": 2,
			"resultList": {"result": [
				{
					"id": "37999001",
					"doi": "10.1016/j.jchf.2023.01.001",
					"title": "Natriuretic peptides in acute dyspnea",
					"authorString": "Moreno P, Silva R.",
					"abstractText": "BNP testing improves triage.",
					"pubYear": "2023",
					"citedByCount": 41,
					"isOpenAccess": "Y",
					"journalInfo": {"journal": {"title": "JACC Heart Failure"}}
				},
				{
					"id": "PPR600123",
					"title": "Preprint on congestion scoring",
					"pubYear": "2024",
					"citedByCount": 2,
					"isOpenAccess": "N"
				}
			]}
		}`))
	}))
	defer server.Close()

	old := europePMCAPIBase
	europePMCAPIBase = server.URL
	defer func() { europePMCAPIBase = old }()

	src := &EuropePMCSource{Client: server.Client()}
	refs, err := src.Search(context.Background(),
		Query{Terms: []string{"dyspnea", "heart failure"}},
		types.LiteratureConfig{MaxResults: 10, LookbackYears: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotResultType != "core" {
		t.Errorf("resultType = %q, want core", gotResultType)
	}
	if !strings.Contains(gotQuery, `"dyspnea" AND "heart failure"`) {
		t.Errorf("query = %q", gotQuery)
	}
	wantWindow := fmt.Sprintf("PUB_YEAR:[%d TO %d]", time.Now().Year()-5, time.Now().Year())
	if !strings.Contains(gotQuery, wantWindow) {
		t.Errorf("query %q missing year window %q", gotQuery, wantWindow)
	}

	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	first := refs[0]
	if first.DOI != "10.1016/j.jchf.2023.01.001" {
		t.Errorf("DOI = %q", first.DOI)
	}
	if first.Abstract != "BNP testing improves triage." {
		t.Errorf("abstract = %q", first.Abstract)
	}
	if first.Journal != "JACC Heart Failure" {
		t.Errorf("journal = %q", first.Journal)
	}
	if first.CitationCount != 41 {
		t.Errorf("citationCount = %d", first.CitationCount)
	}
	if !first.OpenAccess {
		t.Error("first reference should be open access")
	}
	if first.URL != "https://doi.org/10.1016/j.jchf.2023.01.001" {
		t.Errorf("URL = %q", first.URL)
	}
	if len(first.Authors) != 2 || first.Authors[1] != "Silva R" {
		t.Errorf("authors = %v", first.Authors)
	}
	if refs[1].OpenAccess {
		t.Error("second reference should not be open access")
	}
	if refs[1].Year != 2024 {
		t.Errorf("second year = %d", refs[1].Year)
	}
}

func TestEuropePMCSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	old := europePMCAPIBase
	europePMCAPIBase = server.URL
	defer func() { europePMCAPIBase = old }()

	src := &EuropePMCSource{Client: server.Client()}
	if _, err := src.Search(context.Background(), Query{Terms: []string{"x"}}, types.LiteratureConfig{}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestEuropePMCSearchEmptyQuery(t *testing.T) {
	src := &EuropePMCSource{Client: http.DefaultClient}
	if _, err := src.Search(context.Background(), Query{}, types.LiteratureConfig{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}
