package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
)

type scoredStatement struct {
	Text string `json:"text"`
	quality.QualityScore
}

func newScoreCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "score [statement...]",
		Short: "Score learning statements for quality",
		Long: `Score each statement on specificity, actionability and clarity, less
the anti-pattern penalty, and report the recommended action.

Examples:
  qlearn score "Always charge at least $450 for deck demolition"
  qlearn score --file statements.txt -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readStatements(cmd, args, from)
			if err != nil {
				return err
			}
			scorer, err := quality.NewScorerWithRules(quality.DefaultConfig(), a.rules.Quality)
			if err != nil {
				return err
			}
			results := make([]scoredStatement, 0, len(texts))
			for _, text := range texts {
				results = append(results, scoredStatement{Text: text, QualityScore: scorer.Score(text)})
			}
			return a.emit(cmd, results, func(w io.Writer) error {
				return renderScores(w, results)
			})
		},
	}
	cmd.Flags().StringVarP(&from, "file", "f", "", `read statements from a file, one per line ("-" for stdin)`)
	return cmd
}

func renderScores(w io.Writer, results []scoredStatement) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			truncate(r.Text, 60),
			fmt.Sprintf("%.1f", r.Overall),
			string(r.Tier),
			fmt.Sprintf("%.0f", r.Specificity),
			fmt.Sprintf("%.0f", r.Actionability),
			fmt.Sprintf("%.0f", r.Clarity),
			strings.Join(r.DetectedAntiPatterns, ", "),
		})
	}
	return renderTable(w,
		[]string{"Statement", "Overall", "Tier", "Spec", "Act", "Clarity", "Anti-patterns"},
		rows,
		func(row, col int) lipgloss.Style {
			if col != 2 {
				return cellStyle
			}
			switch results[row].Tier {
			case quality.TierAccept:
				return goodStyle
			case quality.TierReject:
				return badStyle
			default:
				return warnStyle
			}
		})
}

type classifiedStatement struct {
	Text string `json:"text"`
	dna.Classification
}

func newClassifyCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "classify [statement...]",
		Short: "Classify statements for transfer across categories",
		Long: `Classify each statement by pricing pattern type and transferability:
universal patterns transfer to every category, related ones to categories
sharing a group, and specific ones stay where they were learned.

Examples:
  qlearn classify "Add 15% markup on all materials"
  qlearn classify --rules rules.toml --file statements.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readStatements(cmd, args, from)
			if err != nil {
				return err
			}
			classifier, err := dna.NewClassifier(a.rules.DNARules)
			if err != nil {
				return err
			}
			results := make([]classifiedStatement, 0, len(texts))
			for _, text := range texts {
				results = append(results, classifiedStatement{Text: text, Classification: classifier.Classify(text)})
			}
			return a.emit(cmd, results, func(w io.Writer) error {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					value := ""
					if r.NumericValue != nil {
						value = fmt.Sprintf("%g", *r.NumericValue)
					}
					rows = append(rows, []string{
						truncate(r.Text, 60),
						r.PatternType,
						string(r.Transferability),
						value,
					})
				}
				return renderTable(w, []string{"Statement", "Pattern", "Transfer", "Value"}, rows,
					func(row, col int) lipgloss.Style {
						if col == 2 && results[row].Transferability == profile.TransferUniversal {
							return goodStyle
						}
						return cellStyle
					})
			})
		},
	}
	cmd.Flags().StringVarP(&from, "file", "f", "", `read statements from a file, one per line ("-" for stdin)`)
	return cmd
}
