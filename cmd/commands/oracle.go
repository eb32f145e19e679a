package commands

import (
	"context"

	"github.com/lendfork/lendfork/scenario"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/spf13/cobra"
)

func NewOracleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Deploy a reUSD market behind an OracleProxy and manipulate its price",
	}
	cmd.AddCommand(
		newOracleSubCmd("deploy", "Deploy the oracle, its proxy and the market",
			func(ctx context.Context, env *scenario.Env, params scenario.OracleParams) xerrors.XError {
				market, xerr := scenario.DeployOracleMarket(ctx, env, params)
				if xerr != nil {
					return xerr
				}
				logger.Info("market deployed",
					"proxy", market.Proxy.Address(),
					"vault", market.Vault,
					"controller", market.Controller,
					"amm", market.AMM.Address())
				return nil
			}),
		newOracleSubCmd("down", "Dump reUSD into the pool and report the oracle", scenario.RunDownManipulation),
		newOracleSubCmd("up", "Buy reUSD with scrvUSD and report the oracle", scenario.RunUpManipulation),
		newOracleSubCmd("all", "Run the down and up manipulations from the same state", scenario.RunAllManipulations),
	)
	AddOracleFlags(cmd)
	return cmd
}

func AddOracleFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Uint64("oracle.max_deviation", rootConfig.Oracle.MaxDeviation, "proxy deviation bound in basis points")
	cmd.PersistentFlags().Uint64("oracle.new_max_deviation", rootConfig.Oracle.NewMaxDeviation, "deviation bound set by the admin after the manipulation")
	cmd.PersistentFlags().Uint64("oracle.settle", rootConfig.Oracle.Settle, "seconds slept between the manipulation and the price_w poke")
}

func newOracleSubCmd(use, short string, run func(context.Context, *scenario.Env, scenario.OracleParams) xerrors.XError) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, xerr := rootConfig.OracleParams()
			if xerr != nil {
				return xerr
			}
			return runScenario(cmd, func(ctx context.Context, env *scenario.Env) error {
				if xerr := run(ctx, env, params); xerr != nil {
					return xerr
				}
				return nil
			})
		},
	}
}
