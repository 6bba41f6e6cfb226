package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/app"
)

func newRenderCmd() *cobra.Command {
	var req app.RenderRequest
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the aggregated feed once",
		Long: `Loads the sources document, fetches every feed, and writes the Atom
document to stdout or to the configured output store (local directory or GCS
bucket). When pubsub.topic_name is set a notification is published after the
document is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Render(cmd.Context(), req, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			appInstance.Logger().Info("render finished",
				zap.String("uri", report.URI),
				zap.Int("entries", report.Entries),
				zap.Int("sources", report.Sources),
				zap.Int("sources_skipped", report.SourcesSkipped),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Location, "sources", "", "sources document URL or path (default sources.url)")
	cmd.Flags().StringVar(&req.Object, "out", "", `object path in the output store, or "-" for stdout (default output.object)`)
	return cmd
}
