package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/reservo/internal/config"
	"github.com/KaramelBytes/reservo/internal/failure"
	"github.com/KaramelBytes/reservo/internal/ingest"
	"github.com/KaramelBytes/reservo/internal/preprocess"
	"github.com/KaramelBytes/reservo/internal/train"
)

var (
	ingestLocal string
	runLocal    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download the raw CSV and split it into train and test",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		return runIngest(cmd.Context(), cmd.OutOrStdout(), c, ingestLocal)
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Preprocess, balance and select features from the split data",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		return runProcess(cmd.Context(), cmd.OutOrStdout(), c)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Search hyperparameters, train and persist the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		return runTrain(cmd.Context(), cmd.OutOrStdout(), c)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingest, process and train in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx, out := cmd.Context(), cmd.OutOrStdout()
		if err := runIngest(ctx, out, c, runLocal); err != nil {
			return err
		}
		if err := runProcess(ctx, out, c); err != nil {
			return err
		}
		return runTrain(ctx, out, c)
	},
}

func runIngest(ctx context.Context, out io.Writer, c *cfgpkg.Pipeline, local string) error {
	return metrics.ObserveStage("ingest", func() error {
		var src ingest.Source
		if local != "" {
			src = ingest.LocalSource{Path: local}
		} else {
			gcs, err := ingest.NewGCSSource(ctx, c.DataIngestion.BucketName, c.DataIngestion.BucketFilename, c.DataIngestion.CredentialsFile)
			if err != nil {
				return failure.Wrap(failure.KindIngestion, "connect to storage", err)
			}
			defer gcs.Close()
			src = gcs
		}
		in := &ingest.Ingestor{
			Source:     src,
			Paths:      c.Paths,
			TrainRatio: c.DataIngestion.TrainRatio,
			Seed:       c.DataProcessing.RandomState,
			Logger:     logger,
		}
		res, err := in.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Ingested %d rows from %s (train %d, test %d)\n", res.Rows, src.Describe(), res.TrainRows, res.TestRows)
		return nil
	})
}

func runProcess(ctx context.Context, out io.Writer, c *cfgpkg.Pipeline) error {
	return metrics.ObserveStage("process", func() error {
		p := &preprocess.Processor{Paths: c.Paths, Config: preprocess.ConfigFrom(c.DataProcessing), Logger: logger}
		res, err := p.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Processed data: %d train rows, %d test rows\n", res.Train.Rows(), res.Test.Rows())
		names := res.Train.Names()
		fmt.Fprintf(out, "  Selected features: %v\n", names[:len(names)-1])
		if len(res.Log1p) > 0 {
			fmt.Fprintf(out, "  log1p applied to: %v\n", res.Log1p)
		}
		return nil
	})
}

func runTrain(ctx context.Context, out io.Writer, c *cfgpkg.Pipeline) error {
	return metrics.ObserveStage("train", func() error {
		tr := &train.Trainer{
			Paths:    c.Paths,
			Training: c.ModelTraining,
			Target:   c.DataProcessing.TargetColumn,
			Logger:   logger,
		}
		res, err := tr.Run(ctx)
		if err != nil {
			return err
		}
		m := res.Artifact.Metrics
		fmt.Fprintf(out, "✓ Model saved to %s (run %s)\n", c.Paths.ModelFile(), res.Run.ID)
		fmt.Fprintf(out, "  accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f\n", m.Accuracy, m.Precision, m.Recall, m.F1)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(runCmd)
	ingestCmd.Flags().StringVar(&ingestLocal, "local", "", "copy this local CSV instead of downloading from GCS")
	runCmd.Flags().StringVar(&runLocal, "local", "", "copy this local CSV instead of downloading from GCS")
}
