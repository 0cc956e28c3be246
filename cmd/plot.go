package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/plot"
)

func newPlotCmd() *cobra.Command {
	var (
		runID string
		top   int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the shared-actor ranking as an HTML scatter plot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.GetConfig()
			if !cmd.Flags().Changed("top") {
				top = cfg.Recommend.Top
			}
			if out == "" {
				out = cfg.Plot.File
			}
			recs, err := loadRecommendations(cmd, appInstance, runID, top)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := plot.Scatter(&buf, recs, plot.Options{Title: cfg.Plot.Title, Subtitle: runID}); err != nil {
				return fmt.Errorf("render plot: %w", err)
			}
			uri, err := appInstance.GetBlobs().PutObject(cmd.Context(), out, "text/html; charset=utf-8", &buf)
			if err != nil {
				return fmt.Errorf("store plot: %w", err)
			}
			appInstance.GetLogger().Info("Plot written", zap.String("uri", uri), zap.Int("titles", len(recs)))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to plot (default: latest run)")
	cmd.Flags().IntVar(&top, "top", 10, "number of titles to plot, 0 for all (overrides recommend.top)")
	cmd.Flags().StringVar(&out, "out", "", "artifact path of the HTML file (default: plot.file)")
	return cmd
}
