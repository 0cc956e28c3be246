package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/report"
)

func newRecommendCmd() *cobra.Command {
	var (
		runID  string
		top    int
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank titles by the number of actors they share with the seed movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top") {
				top = appInstance.GetConfig().Recommend.Top
			}
			recs, err := loadRecommendations(cmd, appInstance, runID, top)
			if err != nil {
				return err
			}

			opts := report.Options{Title: "Movies with shared actors", RunID: runID}
			if out == "" {
				return report.Write(cmd.OutOrStdout(), f, recs, opts)
			}
			var buf bytes.Buffer
			if err := report.Write(&buf, f, recs, opts); err != nil {
				return err
			}
			uri, err := appInstance.GetBlobs().PutObject(cmd.Context(), out, f.ContentType(), &buf)
			if err != nil {
				return fmt.Errorf("store report: %w", err)
			}
			appInstance.GetLogger().Info("Report written", zap.String("uri", uri), zap.Int("titles", len(recs)))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to rank (default: latest run)")
	cmd.Flags().IntVar(&top, "top", 10, "number of titles to keep, 0 for all (overrides recommend.top)")
	cmd.Flags().StringVar(&format, "format", string(report.FormatTable), "output format: "+formatNames())
	cmd.Flags().StringVar(&out, "out", "", "write the report to this artifact path instead of stdout")
	return cmd
}

// loadRecommendations ranks the stored credits of runID, honoring recommend.exclude_titles.
func loadRecommendations(cmd *cobra.Command, appInstance App, runID string, top int) ([]credit.Recommendation, error) {
	credits, err := appInstance.GetStore().ListCredits(cmd.Context(), runID)
	if err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}
	ranked := credit.Rank(credits, appInstance.GetConfig().Recommend.ExcludeTitles)
	return credit.Top(ranked, top), nil
}

func formatNames() string {
	names := make([]string, 0, len(report.Formats))
	for _, f := range report.Formats {
		names = append(names, string(f))
	}
	return strings.Join(names, "|")
}
