package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotelearn/internal/dedup"
	"github.com/fyrsmithlabs/quotelearn/internal/embeddings"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
	"github.com/fyrsmithlabs/quotelearn/internal/relevance"
)

type rankedStatement struct {
	Rank         int     `json:"rank"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	Keyword      float64 `json:"keyword"`
	Recency      float64 `json:"recency"`
	Specificity  float64 `json:"specificity"`
	Foundational float64 `json:"foundational"`
}

func newSelectCmd(a *app) *cobra.Command {
	var (
		from string
		job  string
		k    int
	)
	cmd := &cobra.Command{
		Use:   "select [statement...]",
		Short: "Select the statements most relevant to a job",
		Long: `Rank statements by keyword overlap with the job description,
specificity and foundational markers, and print the top k.

Examples:
  qlearn select --job "rebuild a second story deck" -k 3 --file statements.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readStatements(cmd, args, from)
			if err != nil {
				return err
			}
			scorer, err := quality.NewScorerWithRules(quality.DefaultConfig(), a.rules.Quality)
			if err != nil {
				return err
			}
			cfg := relevance.DefaultConfig()
			sel, err := relevance.NewSelector(cfg, scorer)
			if err != nil {
				return err
			}

			pool := make([]profile.Statement, 0, len(texts))
			for _, t := range texts {
				pool = append(pool, profile.Statement{Text: t})
			}
			ranked := sel.Rank(pool, job)
			if k <= 0 {
				k = cfg.DefaultK
			}
			if k > len(ranked) {
				k = len(ranked)
			}

			results := make([]rankedStatement, 0, k)
			for i, r := range ranked[:k] {
				results = append(results, rankedStatement{
					Rank:         i + 1,
					Text:         r.Statement.Text,
					Score:        r.Score,
					Keyword:      r.Keyword,
					Recency:      r.Recency,
					Specificity:  r.Specificity,
					Foundational: r.Foundational,
				})
			}
			return a.emit(cmd, results, func(w io.Writer) error {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						strconv.Itoa(r.Rank),
						truncate(r.Text, 60),
						fmt.Sprintf("%.1f", r.Score),
						fmt.Sprintf("%.0f", r.Keyword),
						fmt.Sprintf("%.0f", r.Specificity),
						fmt.Sprintf("%.0f", r.Foundational),
					})
				}
				return renderTable(w, []string{"#", "Statement", "Score", "Keyword", "Spec", "Found."}, rows, nil)
			})
		},
	}
	cmd.Flags().StringVarP(&from, "file", "f", "", `read statements from a file, one per line ("-" for stdin)`)
	cmd.Flags().StringVar(&job, "job", "", "job description to rank against")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of statements to select (default from config)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

type dedupOutput struct {
	Statements []dedupStatement `json:"statements"`
	Stats      dedup.Stats      `json:"stats"`
}

type dedupStatement struct {
	Text        string `json:"text"`
	MergedCount int    `json:"merged_count"`
	SampleCount int    `json:"sample_count"`
}

func newDedupCmd(a *app) *cobra.Command {
	var (
		from      string
		threshold float64
		embCfg    embeddings.ProviderConfig
	)
	cmd := &cobra.Command{
		Use:   "dedup [statement...]",
		Short: "Collapse semantically equivalent statements",
		Long: `Cluster statements whose embedding similarity reaches the threshold
and keep one representative per cluster.

The hash embedder is used unless --embedder selects tei, openai or
fastembed.

Examples:
  qlearn dedup --file statements.txt
  qlearn dedup --embedder tei --embedder-url http://localhost:8080 --file statements.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readStatements(cmd, args, from)
			if err != nil {
				return err
			}
			embedder, err := embeddings.NewProvider(embCfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer embedder.Close()

			now := time.Now()
			pool := make([]profile.Statement, 0, len(texts))
			for _, t := range texts {
				st, err := profile.NewStatement("cli", t, profile.SourceCorrection, 0.5, now)
				if err != nil {
					return err
				}
				pool = append(pool, *st)
			}

			cfg := dedup.DefaultConfig()
			if threshold > 0 {
				cfg.Threshold = threshold
			}
			res, err := dedup.NewEngine(cfg, embedder, nil).Deduplicate(cmd.Context(), pool)
			if err != nil {
				return err
			}

			out := dedupOutput{Stats: res.Stats}
			for _, st := range res.Statements {
				out.Statements = append(out.Statements, dedupStatement{
					Text:        st.Text,
					MergedCount: st.MergedCount,
					SampleCount: st.SampleCount,
				})
			}
			return a.emit(cmd, out, func(w io.Writer) error {
				rows := make([][]string, 0, len(out.Statements))
				for _, st := range out.Statements {
					rows = append(rows, []string{truncate(st.Text, 70), strconv.Itoa(st.MergedCount)})
				}
				if err := renderTable(w, []string{"Statement", "Merged"}, rows, nil); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "%d -> %d statements (%d clusters, %.0f%% reduction)\n",
					out.Stats.OriginalCount, out.Stats.FinalCount, out.Stats.ClustersFound, out.Stats.ReductionPercent)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&from, "file", "f", "", `read statements from a file, one per line ("-" for stdin)`)
	f.Float64Var(&threshold, "threshold", 0, "cosine similarity threshold (default from config)")
	f.StringVar(&embCfg.Provider, "embedder", embeddings.ProviderHash, "embedding provider: hash, tei, openai, fastembed")
	f.StringVar(&embCfg.Model, "embedder-model", "", "embedding model")
	f.StringVar(&embCfg.BaseURL, "embedder-url", "", "embedding service URL (tei, openai)")
	return cmd
}
