package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/reservo/internal/table"
	"github.com/KaramelBytes/reservo/internal/utils"
)

var (
	descOutputPath string
	descSampleRows int
	descTopValues  int
	descOutlierThr float64
	descSkewThr    float64
)

var describeCmd = &cobra.Command{
	Use:   "describe <csv>",
	Short: "Profile a CSV and print a markdown summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		t, err := table.Load(path)
		if err != nil {
			return err
		}
		opt := table.DescribeOptions{
			SampleRows:       descSampleRows,
			TopValues:        descTopValues,
			OutlierThreshold: descOutlierThr,
			SkewThreshold:    descSkewThr,
		}
		// fall back to the pipeline's threshold so the notes match what process will do
		if !cmd.Flags().Changed("skew-threshold") && cfg != nil {
			opt.SkewThreshold = cfg.DataProcessing.SkewnessThreshold
		}
		md := table.Describe(t, filepath.Base(path), opt).Markdown()

		if descOutputPath != "" {
			if err := utils.SafeWriteFile(descOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", descOutputPath)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "write the markdown profile to this file")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 0, "number of head rows to include (negative disables)")
	describeCmd.Flags().IntVar(&descTopValues, "top", 0, "top values listed per categorical column")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", 0, "robust z cutoff for outliers")
	describeCmd.Flags().Float64Var(&descSkewThr, "skew-threshold", 0, "note numeric columns skewed beyond this")
}
