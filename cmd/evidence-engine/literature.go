// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/literature"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var literatureCmd = &cobra.Command{
	Use:   "literature [terms...]",
	Short: "Search the medical literature sources directly",
	Long: `Literature queries PubMed, Europe PMC, and Semantic Scholar for the given
terms, merges and deduplicates the results, and ranks them. Repeated identical
queries within the cache TTL are served from cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLiterature,
}

func init() {
	literatureCmd.Flags().String("mesh", "", "MeSH terms to bias the PubMed query (comma-separated)")
	literatureCmd.Flags().Int("max-results", 0, "maximum number of merged references (0 = config default)")
	literatureCmd.Flags().Int("lookback", 0, "publication lookback window in years (0 = config default)")
	literatureCmd.Flags().String("sort", "", "result ordering: relevance, date, or citations")
	literatureCmd.Flags().Bool("study-types", false, "restrict to trials, reviews, meta-analyses, and case reports")
	literatureCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(literatureCmd)
}

func runLiterature(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig().Literature
	if v, _ := cmd.Flags().GetInt("max-results"); v > 0 {
		cfg.MaxResults = v
	}
	if v, _ := cmd.Flags().GetInt("lookback"); v > 0 {
		cfg.LookbackYears = v
	}
	if v, _ := cmd.Flags().GetString("sort"); v != "" {
		cfg.SortBy = types.SortCriterion(v)
	}
	if v, _ := cmd.Flags().GetBool("study-types"); v {
		cfg.StudyTypeFilter = true
	}

	query := literature.Query{Terms: args}
	if raw, _ := cmd.Flags().GetString("mesh"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				query.MeSHTerms = append(query.MeSHTerms, m)
			}
		}
	}

	client := httpClient(cfg.HTTPConfig)
	sources, closer := literature.BuildSources(client, cfg)
	if len(sources) == 0 {
		return fmt.Errorf("no literature sources enabled")
	}
	defer closer()

	engine := literature.NewEngine(sources, cfg, logger)
	result, err := engine.Search(context.Background(), query, cfg)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printLiterature(result)
	return nil
}

// printLiterature writes results as a human-readable table to stdout.
func printLiterature(result literature.Result) {
	for _, e := range result.SourceErrors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
	if len(result.References) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("%-4s  %-60s  %-24s  %-4s  %-5s  %s\n",
		"Rank", "Title", "Journal", "Year", "Cites", "Source")
	fmt.Println(strings.Repeat("-", 112))

	for i, r := range result.References {
		title := r.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		journal := r.Journal
		if len(journal) > 24 {
			journal = journal[:21] + "..."
		}
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf("%d", r.Year)
		}
		fmt.Printf("%-4d  %-60s  %-24s  %-4s  %-5d  %s\n",
			i+1, title, journal, year, r.CitationCount, r.Source)
	}

	var sources []string
	for _, s := range result.SourcesSearched {
		sources = append(sources, string(s))
	}
	fmt.Printf("\n%d of %d results (%s)", len(result.References), result.TotalFound, strings.Join(sources, ", "))
	if result.FromCache {
		fmt.Print(" [cached]")
	}
	fmt.Println()
}
