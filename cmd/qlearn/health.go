package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/quotelearn/internal/http"
)

type healthOutput struct {
	Health httpserver.HealthResponse `json:"health"`
	Ready  httpserver.ReadyResponse  `json:"ready"`
}

func newHealthCmd(a *app) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running quotelearnd",
		Long: `Query the daemon's /health and /ready endpoints. The command fails
when the daemon is not ready.

Examples:
  qlearn health --server http://localhost:8090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			base := strings.TrimRight(serverURL, "/")

			var out healthOutput
			if _, err := getJSON(client, base+"/health", &out.Health); err != nil {
				return err
			}
			code, err := getJSON(client, base+"/ready", &out.Ready)
			if err != nil {
				return err
			}

			if err := a.emit(cmd, out, func(w io.Writer) error {
				fmt.Fprintf(w, "%s %s: %s\n", out.Health.Service, out.Health.Version, out.Health.Status)
				rows := make([][]string, 0, len(out.Ready.Checks))
				for _, name := range slices.Sorted(maps.Keys(out.Ready.Checks)) {
					rows = append(rows, []string{name, out.Ready.Checks[name]})
				}
				return renderTable(w, []string{"Check", "Status"}, rows, nil)
			}); err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("daemon not ready: %s", out.Ready.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8090", "quotelearnd URL")
	return cmd
}

// getJSON decodes the body of url into v. Only 200 and 503 carry a body
// the daemon defines.
func getJSON(client *http.Client, url string, v any) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return resp.StatusCode, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
