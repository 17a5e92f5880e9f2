package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotelearn/internal/confidence"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
)

type confidenceResult struct {
	confidence.PricingConfidence
	Prompt string `json:"prompt"`
}

func newConfidenceCmd(a *app) *cobra.Command {
	var (
		in          confidence.Input
		nSimple     int
		nMedium     int
		nComplex    int
		category    string
		profilePath string
		promptOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "confidence",
		Short: "Compute the pricing confidence of a category",
		Long: `Compute the data, accuracy, recency and coverage dimensions, the
calibrated overall confidence and the prompt guidance for a category.

The history comes from flags, or from a stored category profile record
(JSON) given with --profile.

Examples:
  qlearn confidence --quotes 40 --accepted 30 --corrected 10 --magnitudes 0.1,0.2 --days 3 --simple 20 --medium 15 --complex 5
  qlearn confidence --profile deck_building.json --prompt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := category
			if profilePath != "" {
				data, err := os.ReadFile(profilePath)
				if err != nil {
					return fmt.Errorf("failed to read profile: %w", err)
				}
				p, err := profile.DecodeCategoryProfile(data)
				if err != nil {
					return err
				}
				in = confidence.FromProfile(p, time.Now())
				if name == "" {
					name = p.DisplayName
				}
			} else {
				if in.QuoteCount == 0 {
					in.QuoteCount = in.AcceptanceCount + in.CorrectionCount
				}
				in.ComplexityDistribution = map[string]int{
					confidence.ComplexitySimple:  nSimple,
					confidence.ComplexityMedium:  nMedium,
					confidence.ComplexityComplex: nComplex,
				}
			}

			pc := confidence.NewCalculator(confidence.DefaultConfig()).Compute(in)
			res := confidenceResult{PricingConfidence: pc, Prompt: confidence.PromptInjection(pc, name)}
			if promptOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Prompt)
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				return renderConfidence(w, res)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&in.QuoteCount, "quotes", 0, "quotes processed (default accepted+corrected)")
	f.IntVar(&in.AcceptanceCount, "accepted", 0, "quotes accepted unedited")
	f.IntVar(&in.CorrectionCount, "corrected", 0, "quotes edited before sending")
	f.Float64SliceVar(&in.CorrectionMagnitudes, "magnitudes", nil, "recent correction magnitudes (fractions)")
	f.Float64Var(&in.DaysSinceLastQuote, "days", 0, "days since the last quote")
	f.IntVar(&nSimple, "simple", 0, "simple quotes seen")
	f.IntVar(&nMedium, "medium", 0, "medium quotes seen")
	f.IntVar(&nComplex, "complex", 0, "complex quotes seen")
	f.StringVar(&category, "category", "", "category display name used in the prompt")
	f.StringVar(&profilePath, "profile", "", "read history from a category profile record")
	f.BoolVar(&promptOnly, "prompt", false, "print only the prompt guidance")
	return cmd
}

func renderConfidence(w io.Writer, res confidenceResult) error {
	rows := [][]string{
		{"data", fmt.Sprintf("%.3f", res.Data)},
		{"accuracy", fmt.Sprintf("%.3f", res.Accuracy)},
		{"recency", fmt.Sprintf("%.3f", res.Recency)},
		{"coverage", fmt.Sprintf("%.3f", res.Coverage)},
		{"overall", fmt.Sprintf("%.3f", res.Overall)},
		{"tier", string(res.Tier)},
	}
	err := renderTable(w, []string{"Dimension", "Value"}, rows, func(row, col int) lipgloss.Style {
		if col == 1 && rows[row][0] == "tier" {
			switch res.Tier {
			case confidence.TierHigh:
				return goodStyle
			case confidence.TierLearning:
				return badStyle
			default:
				return warnStyle
			}
		}
		return cellStyle
	})
	if err != nil {
		return err
	}
	if res.Baseline {
		fmt.Fprintf(w, "Baseline: only %d quotes, overall fixed at the low-volume baseline\n", res.QuoteCount)
	}
	_, err = fmt.Fprintf(w, "\n%s\n", res.Prompt)
	return err
}
