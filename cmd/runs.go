package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/reservo/internal/runs"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded training runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List training runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		all, err := runs.List(c.Paths.RunsDir())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		if runsLimit > 0 && len(all) > runsLimit {
			all = all[:runsLimit]
		}
		for _, r := range all {
			fmt.Fprintf(out, "- %s [%s] %s", r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"))
			if len(r.Metrics) > 0 {
				fmt.Fprintf(out, " %s", formatMetrics(r.Metrics))
			}
			if r.Error != "" {
				fmt.Fprintf(out, " error=%q", r.Error)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 0, "show at most this many runs")
}
