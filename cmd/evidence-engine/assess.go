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
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var assessCmd = &cobra.Command{
	Use:   "assess [transcript]",
	Short: "Run the full assessment pipeline on a consultation transcript",
	Long: `Assess extracts clinical entities from the transcript, fuses similarity
and keyword matches from the knowledge base, retrieves supporting literature,
and synthesizes a differential diagnosis. Optional phases degrade gracefully:
a failed literature search or synthesis still yields an assessment.

The transcript is taken from the argument, --file, or stdin, in that order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().String("file", "", "read the transcript from a file")
	assessCmd.Flags().String("symptoms", "", "accumulated symptoms from earlier turns (comma-separated)")
	assessCmd.Flags().Bool("no-literature", false, "skip the literature phase")
	assessCmd.Flags().Bool("no-synthesis", false, "skip the synthesis phase")
	assessCmd.Flags().Bool("json", false, "output the result as JSON")
	assessCmd.Flags().String("save", "", "save the assessment to a YAML case file")
	assessCmd.Flags().Bool("store", false, "persist the assessment to the history database")

	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	transcript, err := readTranscript(cmd, args)
	if err != nil {
		return err
	}

	var accumulated []string
	if raw, _ := cmd.Flags().GetString("symptoms"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				accumulated = append(accumulated, s)
			}
		}
	}

	noLit, _ := cmd.Flags().GetBool("no-literature")
	noSynth, _ := cmd.Flags().GetBool("no-synthesis")

	cfg := pipelineConfig()
	engine, closer, err := buildPipeline(cfg, !noLit, !noSynth)
	if err != nil {
		return err
	}
	defer closer()

	result, err := engine.Run(context.Background(), transcript, accumulated)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := pipeline.WriteCaseFile(path, transcript, accumulated, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved case file: %s\n", path)
	}

	if store, _ := cmd.Flags().GetBool("store"); store {
		s, err := evidencestore.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		id, err := s.Save(context.Background(), transcript, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored assessment: %s\n", id)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printAssessment(result)
	return nil
}

// readTranscript resolves the transcript from the argument, --file, or stdin.
func readTranscript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading transcript file: %w", err)
		}
		return string(data), nil
	}

	info, err := os.Stdin.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice == 0 {
		var b strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("no transcript: pass it as an argument, via --file, or on stdin")
}

// printAssessment writes the human-readable assessment to stdout.
func printAssessment(r types.PipelineResult) {
	fmt.Println(r.Summary)
	fmt.Println()

	if len(r.FusedResults) > 0 {
		fmt.Println("Knowledge base matches:")
		for _, f := range r.FusedResults {
			if f.Kind == types.KindSimilarity {
				fmt.Printf("  %-40s  similarity %.0f%%\n", f.Label, f.SimilarityPercent)
			} else {
				fmt.Printf("  %-40s  keyword score %.1f\n", f.Label, f.Score)
			}
		}
		fmt.Println()
	}

	if len(r.References) > 0 {
		fmt.Printf("Literature (%s):\n", strings.Join(r.SourcesSearched, ", "))
		for _, ref := range r.References {
			year := ""
			if ref.Year > 0 {
				year = fmt.Sprintf(" (%d)", ref.Year)
			}
			fmt.Printf("  - %s%s", ref.Title, year)
			if ref.CitationCount > 0 {
				fmt.Printf(" [%d citations]", ref.CitationCount)
			}
			fmt.Println()
		}
		fmt.Println()
	}

	if r.Synthesis != nil {
		if len(r.Synthesis.Recommendations.RedFlags) > 0 {
			fmt.Println("Red flags:")
			for _, f := range r.Synthesis.Recommendations.RedFlags {
				fmt.Printf("  ! %s\n", f)
			}
			fmt.Println()
		}
		if len(r.Synthesis.Citations) > 0 {
			fmt.Println("Citations:")
			for _, c := range r.Synthesis.Citations {
				fmt.Printf("  [%s] %s\n", c.EvidenceLevel, c.Reference.Title)
			}
			fmt.Println()
		}
	}

	fmt.Printf("Confidence: %.0f%%   Evidence: %s   Completeness: %.0f%%   Sources: %d   %dms\n",
		r.ConfidenceScore*100, r.EvidenceLevel, r.DataCompleteness*100,
		r.SourcesConsulted, r.ProcessingTimeMs)
}
