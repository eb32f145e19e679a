package commands

import (
	"context"

	"github.com/lendfork/lendfork/scenario"
	"github.com/spf13/cobra"
)

var AprCmd = &cobra.Command{
	Use:   "apr",
	Short: "Print the sfrxUSD rewards cycle and its estimated APR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, func(ctx context.Context, env *scenario.Env) error {
			est, xerr := scenario.ReportSfrxusdAPR(ctx, env)
			if xerr != nil {
				return xerr
			}
			logger.Debug("sfrxUSD apr", "rate", est.Rate, "percent", est.Percent)
			return nil
		})
	},
}
