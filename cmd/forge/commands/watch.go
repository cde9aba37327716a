package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starforge/starforge/pkg/buildtype"
	"github.com/starforge/starforge/pkg/loader"
)

func newWatchCommand(version string) *cobra.Command {
	var pkg string

	cmd := &cobra.Command{
		Use:   "watch <build-file>",
		Short: "Re-evaluate a build file whenever it changes",
		Long: `Watch a build file and re-evaluate it on every change, printing the
typed rules after each successful evaluation. With metrics enabled in the
config file, evaluation counters are served over HTTP while watching.`,
		Example: `  # Watch with metrics from .forge.yaml
  forge watch --package apps/hello apps/hello/BUILD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, tel, err := newInstrumentedLoader(version)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Telemetry shutdown failed")
				}
			}()

			if err := tel.StartMetricsServer(); err != nil {
				return err
			}

			ctx := tel.WithContext(cmd.Context())

			// Evaluate once up front so a broken file is reported
			// immediately rather than on first change.
			if file, err := l.EvalFile(ctx, pkg, args[0]); err != nil {
				log.Error().Err(err).Msg("Initial evaluation failed")
			} else {
				printRules(file)
				tel.Metrics.SetLabelCacheStats(buildtype.LabelCacheStats())
			}

			err = l.Watch(ctx, pkg, args[0], func(file *loader.File, err error) {
				if err != nil {
					return
				}
				printRules(file)
				tel.Metrics.SetLabelCacheStats(buildtype.LabelCacheStats())
			})
			if err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package path the build file belongs to")

	return cmd
}
