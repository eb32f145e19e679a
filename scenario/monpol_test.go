package scenario_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/scenario"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/stretchr/testify/require"
)

func TestDeployMonetaryPolicy(t *testing.T) {
	w := newWorld(t)
	params := scenario.DefaultMonPolParams()
	params.Steps = 3

	deployed, xerr := scenario.DeployMonetaryPolicy(context.Background(), w.env, params)
	require.NoError(t, xerr)

	// constructor wiring
	require.Equal(t, w.deployed[contracts.SfrxusdRateCalc], deployed.Calculator.Address())
	require.Equal(t, w.deployed[contracts.EMAMonetaryPolicy], deployed.Policy.Address())
	require.Equal(t, []interface{}{w.addrs.SfrxUSD}, w.ctorArgs[contracts.SfrxusdRateCalc])
	args := w.ctorArgs[contracts.EMAMonetaryPolicy]
	require.Equal(t, w.addrs.Factory, args[0])
	require.Equal(t, deployed.Calculator.Address(), args[1])
	require.Equal(t, w.addrs.CrvUSD, args[2])
	require.Equal(t, big.NewInt(850_000_000_000_000_000), args[3])
	require.Equal(t, big.NewInt(200_000_000_000_000_000), args[4])
	require.Equal(t, "7200000000000000000", args[5].(*big.Int).String())
	require.Equal(t, 0, args[6].(*big.Int).Sign())

	// the policy deployment pays the 0.04 gwei tip
	var tips []*big.Int
	for _, tx := range w.node.Sent() {
		if tx.To == nil && tx.MaxPriorityFeePerGas != nil {
			tips = append(tips, tx.MaxPriorityFeePerGas.ToInt())
		}
	}
	require.Equal(t, []*big.Int{big.NewInt(40_000_000)}, tips)

	require.Equal(t, deployed.Policy.Address(), w.policy)
	require.Equal(t, params.NearZeroCap.ToBig(), w.distCap)
	require.Equal(t, 3, w.syncs)
	require.Equal(t, 1+1+3+3, w.saveRates)
	require.Equal(t, params.LoanDebt.ToBig(), w.debt)

	journal := w.node.Journal()
	require.Equal(t, 1+3+3, count(journal, "evm_increaseTime"))
	// admin, owner and borrower; the owner only once
	require.Equal(t, 3, count(journal, "anvil_impersonateAccount"))

	out := w.out.String()
	for _, line := range []string{
		"sfrxUSD-long rate in LlamaLend vault with old contract is 5.00%\n",
		"sfrxUSD-long rate in LlamaLend vault with new SecondaryMonPol contract is 18.92%\n",
		"frxUSD apr is 4.0328919964368%\n",
		"Rate in calculator is 1278821663\n",
		"MonPol ma_rate() is 4.03%\n",
		"frxUSD apr is 8.0657839960272%\n",
		"AFTER MESS WITH RATES\nRate in calculator is 2557643327\n",
		"MonPol ma_rate() is 8.07%, 100.00% of target 0 hours after apr rise.\n",
		"MonPol ma_rate() is 8.07%, 100.00% of target 1 hours after apr rise.\n",
		"MonPol ma_rate() is 8.07%, 100.00% of target 2 hours after apr rise.\n",
		"INCREASE MARKET UTILIZATION TEST\nmarket utilization initially is 0.000000%\n",
		"sfrxUSD-long rate before increasing market utilization is 16.13%\n",
		"market utilization after create loan is 50.000000%\n",
		"TEST REDUCING SFRXUSD APR TO NEAR 0\n",
		"frxUSD apr is 0.0000000031536%\n",
		"sfrxUSD-long rate in LlamaLend vault 2 hours after apr decrease is 0.00%\n",
	} {
		require.Contains(t, out, line)
	}
	require.NotContains(t, out, "3 hours")
}

func TestDeployMonetaryPolicyStopsAtFirstFailure(t *testing.T) {
	w := newWorld(t)
	// the market admin is someone else on this fork
	w.env.Addresses.MarketAdmin = common.HexToAddress("0x0000000000000000000000000000000000000bad")

	_, xerr := scenario.DeployMonetaryPolicy(context.Background(), w.env, scenario.DefaultMonPolParams())
	require.Error(t, xerr)
	require.True(t, xerr.Equal(xerrors.ErrReverted))
	require.Contains(t, xerr.Error(), "only admin")

	require.Equal(t, common.Address{}, w.policy)
	require.Zero(t, w.saveRates)
	require.Len(t, w.lines(), 1)
}

func TestMonPolParamsValidateBasic(t *testing.T) {
	require.NoError(t, scenario.DefaultMonPolParams().ValidateBasic())

	p := scenario.DefaultMonPolParams()
	p.HighCap = nil
	require.ErrorContains(t, p.ValidateBasic(), "high_cap")

	p = scenario.DefaultMonPolParams()
	p.LoanBands = 0
	require.Error(t, p.ValidateBasic())

	w := newWorld(t)
	_, xerr := scenario.DeployMonetaryPolicy(context.Background(), w.env, p)
	require.True(t, xerr.Equal(xerrors.ErrConfig))
	require.Empty(t, w.node.Sent())
}
