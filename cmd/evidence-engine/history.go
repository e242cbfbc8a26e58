// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/evidencestore"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Query past assessments",
	Long: `History searches stored assessments using full-text search over
transcripts and summaries, structured filters, or both. Use --refs with an
assessment ID to list its stored references, or --export to write the whole
history to history/export.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("condition", "", "filter by primary condition")
	historyCmd.Flags().String("evidence", "", "filter by evidence grade: high, medium, or low")
	historyCmd.Flags().Int("max-results", 0, "maximum number of results (0 = config default)")
	historyCmd.Flags().String("refs", "", "list stored references for an assessment ID")
	historyCmd.Flags().Bool("export", false, "write the full history to export.yaml")
	historyCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := evidencestore.NewStore(pipelineConfig().Store)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if export, _ := cmd.Flags().GetBool("export"); export {
		if err := store.ExportYAML(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Wrote export.yaml")
		return nil
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if id, _ := cmd.Flags().GetString("refs"); id != "" {
		refs, err := store.References(ctx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(refs)
		}
		for _, r := range refs {
			fmt.Printf("  - %s (%d) %s\n", r.Title, r.Year, r.DOI)
		}
		return nil
	}

	opts := evidencestore.QueryOptions{}
	if len(args) == 1 {
		opts.Query = args[0]
	}
	opts.Condition, _ = cmd.Flags().GetString("condition")
	if level, _ := cmd.Flags().GetString("evidence"); level != "" {
		opts.EvidenceLevel = types.EvidenceRating(level)
	}
	opts.MaxResults, _ = cmd.Flags().GetInt("max-results")

	records, err := store.Retrieve(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	printHistory(records)
	return nil
}

// printHistory writes records as a human-readable table to stdout.
func printHistory(records []evidencestore.Record) {
	if len(records) == 0 {
		fmt.Println("No assessments found.")
		return
	}

	fmt.Printf("%-12s  %-16s  %-32s  %-5s  %-8s  %s\n",
		"ID", "When", "Primary condition", "Conf", "Evidence", "Summary")
	fmt.Println(strings.Repeat("-", 110))

	for _, r := range records {
		summary := r.Summary
		if len(summary) > 40 {
			summary = summary[:37] + "..."
		}
		condition := r.PrimaryCondition
		if len(condition) > 32 {
			condition = condition[:29] + "..."
		}
		fmt.Printf("%-12s  %-16s  %-32s  %-5.2f  %-8s  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
			condition, r.Confidence, r.EvidenceLevel, summary)
	}
	fmt.Printf("\n%d assessments\n", len(records))
}
