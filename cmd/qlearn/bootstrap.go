package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

type bootstrapOutput struct {
	AccountID  string                  `json:"account_id"`
	Category   string                  `json:"category"`
	DNAQuality float64                 `json:"dna_quality"`
	Learnings  []dna.BootstrapLearning `json:"learnings"`
}

func newBootstrapCmd(a *app) *cobra.Command {
	var (
		dnaPath  string
		category string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Preview what a new category inherits from an account's DNA",
		Long: `Read a stored contractor DNA record (JSON) and print the learnings a
new category would be seeded with, including the pricing-style hint.

Examples:
  qlearn bootstrap --dna acct_42.json --category fence_installation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(dnaPath)
			if err != nil {
				return fmt.Errorf("failed to read dna: %w", err)
			}
			d, err := profile.DecodeDNA(data)
			if err != nil {
				return err
			}
			classifier, err := dna.NewClassifier(a.rules.DNARules)
			if err != nil {
				return err
			}
			eng := dna.NewEngine(dna.DefaultConfig(), classifier, a.rules.Groups, nil)

			out := bootstrapOutput{
				AccountID:  d.AccountID,
				Category:   category,
				DNAQuality: eng.Quality(d),
				Learnings:  eng.Bootstrap(d, category),
			}
			if out.Learnings == nil {
				out.Learnings = []dna.BootstrapLearning{}
			}
			return a.emit(cmd, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Account %s, DNA quality %.1f\n", out.AccountID, out.DNAQuality)
				if len(out.Learnings) == 0 {
					_, err := fmt.Fprintf(w, "%s inherits nothing\n", category)
					return err
				}
				rows := make([][]string, 0, len(out.Learnings))
				for _, l := range out.Learnings {
					rows = append(rows, []string{
						truncate(l.Text, 60),
						l.SourceCategory,
						string(l.Transferability),
						fmt.Sprintf("%.2f", l.Confidence),
					})
				}
				return renderTable(w, []string{"Learning", "From", "Transfer", "Confidence"}, rows, nil)
			})
		},
	}
	cmd.Flags().StringVar(&dnaPath, "dna", "", "contractor DNA record (JSON)")
	cmd.Flags().StringVar(&category, "category", "", "new category to bootstrap")
	_ = cmd.MarkFlagRequired("dna")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
