package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/reservo/internal/server"
	"github.com/KaramelBytes/reservo/internal/train"
)

var (
	serveAddr  string
	serveModel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the booking form backed by the trained model",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, model := serveAddr, serveModel
		if addr == "" || model == "" {
			c, err := requireConfig()
			if err != nil {
				return fmt.Errorf("--addr and --model are required without a config: %w", err)
			}
			if addr == "" {
				addr = c.Serving.Addr
			}
			if model == "" {
				model = c.Paths.ModelFile()
			}
		}
		art, err := train.LoadArtifact(model)
		if err != nil {
			return err
		}
		logger.Info().Str("model", model).Strs("features", art.Features).Time("trained_at", art.TrainedAt).Msg("model loaded")
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving %s on %s\n", model, addr)
		return server.New(art, metrics, logger).ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from serving.addr)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model artifact (default <artifacts_dir>/models/model.msgpack)")
}
