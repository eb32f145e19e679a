package commands

import (
	"context"

	"github.com/lendfork/lendfork/scenario"
	"github.com/spf13/cobra"
)

func NewMonPolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "monpol",
		Aliases: []string{"monetary-policy"},
		Short:   "Deploy the sfrxUSD monetary policy and track its rate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, xerr := rootConfig.MonPolParams()
			if xerr != nil {
				return xerr
			}
			return runScenario(cmd, func(ctx context.Context, env *scenario.Env) error {
				deployed, xerr := scenario.DeployMonetaryPolicy(ctx, env, params)
				if xerr != nil {
					return xerr
				}
				logger.Info("monetary policy deployed",
					"calculator", deployed.Calculator.Address(),
					"policy", deployed.Policy.Address())
				return nil
			})
		},
	}
	AddMonPolFlags(cmd)
	return cmd
}

func AddMonPolFlags(cmd *cobra.Command) {
	cmd.Flags().String("monpol.priority_fee", rootConfig.MonPol.PriorityFee, "priority fee of the policy deployment in gwei")
	cmd.Flags().Int("monpol.steps", rootConfig.MonPol.Steps, "save_rate rounds after each APR change")
	cmd.Flags().Uint64("monpol.step", rootConfig.MonPol.Step, "seconds between two save_rate rounds")
	cmd.Flags().Uint64("monpol.warm_up", rootConfig.MonPol.WarmUp, "seconds slept after the first APR change")
}
