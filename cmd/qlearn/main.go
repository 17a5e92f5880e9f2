// Package main implements qlearn, a command-line tool for running the
// learning engines offline: scoring and classifying statements, computing
// confidence, selecting and deduplicating learnings, previewing bootstrap
// and checking a running quotelearnd.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotelearn/internal/rules"
)

// version information
var version = "dev"

const (
	outputText = "text"
	outputJSON = "json"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the flags shared by every command.
type app struct {
	rulesPath string
	output    string
	rules     rules.Set
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "qlearn",
		Short: "Run the pricing learning engines from the command line",
		Long: `qlearn runs the quotelearn engines without a daemon or a store.

Statements can be given as arguments, or one per line in a file or on
stdin ("-"). A TOML rule file replaces the built-in quality and DNA rules,
exactly as the daemon's rules.path does.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch a.output {
			case outputText, outputJSON:
			default:
				return fmt.Errorf("unknown output format %q (supported: text, json)", a.output)
			}
			a.rules = rules.Defaults()
			if a.rulesPath == "" {
				return nil
			}
			set, err := rules.Load(a.rulesPath)
			if err != nil {
				return err
			}
			a.rules = set
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.rulesPath, "rules", "", "TOML rule file overriding the built-in rules")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "output format: text or json")

	root.AddCommand(
		newScoreCmd(a),
		newClassifyCmd(a),
		newConfidenceCmd(a),
		newSelectCmd(a),
		newDedupCmd(a),
		newBootstrapCmd(a),
		newHealthCmd(a),
	)
	return root
}

// readStatements returns args as statements, or reads one statement per
// non-empty line from the file named by from ("-" for stdin).
func readStatements(cmd *cobra.Command, args []string, from string) ([]string, error) {
	if from == "" {
		if len(args) == 0 {
			return nil, fmt.Errorf("no statements given")
		}
		return args, nil
	}

	var r io.Reader
	if from == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(from)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", from, err)
		}
		defer f.Close()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statements: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no statements in %s", from)
	}
	return out, nil
}

// emit writes v as indented JSON, or calls text for the text format.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if a.output == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	goodStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	warnStyle   = cellStyle.Foreground(lipgloss.Color("214"))
	badStyle    = cellStyle.Foreground(lipgloss.Color("196"))
)

// renderTable draws rows under headers. style, when set, picks the style
// of a body cell.
func renderTable(w io.Writer, headers []string, rows [][]string, style func(row, col int) lipgloss.Style) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if style != nil {
				return style(row, col)
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
