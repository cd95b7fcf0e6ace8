package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/findex-dev/findex/internal/index"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit        int
	mode         string // "hybrid", "text", "vector"
	format       string // "text", "json"
	vectorWeight float64
	textWeight   float64
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Searches the index with hybrid ranking: keyword (BM25) and
vector similarity scores are normalized per list and combined by
weight. Use --mode to run only one side.

Examples:
  findex search "quarterly planning notes"
  findex search "机器学习" --mode text
  findex search "error handling" --format json --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: hybrid, text, vector")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", -1, "Override vector fusion weight")
	cmd.Flags().Float64Var(&opts.textWeight, "text-weight", -1, "Override text fusion weight")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()

	cfg, root, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.limit <= 0 || opts.limit > cfg.Search.MaxResults {
		opts.limit = cfg.Search.MaxResults
	}

	a, err := openApp(ctx, cfg, root)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("search_started",
		slog.String("query", query),
		slog.String("mode", opts.mode),
		slog.Int("limit", opts.limit))

	var results []*index.FusedResult
	switch opts.mode {
	case "text":
		results, err = a.manager.SearchText(ctx, query, opts.limit)
	case "vector":
		vec, embedErr := a.embedder.Embed(ctx, query)
		if embedErr != nil {
			return embedErr
		}
		results, err = a.manager.SearchVector(ctx, vec, opts.limit)
	case "hybrid":
		vec, embedErr := a.embedder.Embed(ctx, query)
		if embedErr != nil {
			return embedErr
		}
		var hopts *index.HybridOptions
		if opts.vectorWeight >= 0 || opts.textWeight >= 0 {
			w := index.Weights{Vector: cfg.Search.VectorWeight, Text: cfg.Search.TextWeight}
			if opts.vectorWeight >= 0 {
				w.Vector = opts.vectorWeight
			}
			if opts.textWeight >= 0 {
				w.Text = opts.textWeight
			}
			hopts = &index.HybridOptions{Weights: &w}
		}
		results, err = a.manager.SearchHybrid(ctx, query, vec, opts.limit, hopts)
	default:
		return fmt.Errorf("unknown search mode %q (want hybrid, text, or vector)", opts.mode)
	}
	if err != nil {
		return err
	}

	return printResults(cmd, results, opts.format)
}

func printResults(cmd *cobra.Command, results []*index.FusedResult, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%2d. %-40s score=%.4f", i+1, r.DocID, r.Score)
		if len(r.MatchedTerms) > 0 {
			fmt.Fprintf(out, "  terms=%s", strings.Join(r.MatchedTerms, ","))
		}
		fmt.Fprintln(out)
	}
	return nil
}
