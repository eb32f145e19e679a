package scenario

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/metrics"
	lftypes "github.com/lendfork/lendfork/types"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/shopspring/decimal"
)

// MonPolDeployment is what DeployMonetaryPolicy leaves on the fork.
type MonPolDeployment struct {
	Calculator *contracts.Contract
	Policy     *contracts.Contract
}

// monpolRun carries the handles of one DeployMonetaryPolicy run.
type monpolRun struct {
	env    *Env
	params MonPolParams

	frxusd     *contracts.Contract
	sfrxusd    *contracts.Contract
	controller *contracts.Contract
	vault      *contracts.Contract
	calculator *contracts.Contract
	policy     *contracts.Contract
}

// DeployMonetaryPolicy deploys SfrxusdRateCalc and EMAMonetaryPolicy, swaps
// the policy into the sfrxUSD-long market and watches the moving average
// follow sfrxUSD's distribution cap up, through a utilization jump, and
// down to almost nothing.
func DeployMonetaryPolicy(ctx context.Context, env *Env, params MonPolParams) (*MonPolDeployment, xerrors.XError) {
	if xerr := params.ValidateBasic(); xerr != nil {
		return nil, xerr
	}

	r := &monpolRun{env: env, params: params}
	if xerr := r.bind(); xerr != nil {
		return nil, xerr
	}

	steps := []func(context.Context) xerrors.XError{
		r.deploy,
		r.wire,
		r.warmUp,
		r.raiseAPR,
		r.raiseUtilization,
		r.dropAPR,
	}
	for _, step := range steps {
		if xerr := step(ctx); xerr != nil {
			return nil, xerr
		}
	}
	return &MonPolDeployment{Calculator: r.calculator, Policy: r.policy}, nil
}

func (r *monpolRun) bind() xerrors.XError {
	var xerr xerrors.XError
	addrs := r.env.Addresses
	if r.frxusd, xerr = r.env.at(contracts.ERC20, addrs.FrxUSD); xerr != nil {
		return xerr
	}
	if r.sfrxusd, xerr = r.env.at(contracts.StakedFrxUSD, addrs.SfrxUSD); xerr != nil {
		return xerr
	}
	if r.controller, xerr = r.env.at(contracts.LlamaLendController, addrs.Controller); xerr != nil {
		return xerr
	}
	if r.vault, xerr = r.env.at(contracts.LlamaLendVault, addrs.Vault); xerr != nil {
		return xerr
	}
	return nil
}

func (r *monpolRun) deploy(ctx context.Context) xerrors.XError {
	var xerr xerrors.XError
	addrs := r.env.Addresses

	r.calculator, xerr = r.env.deploy(ctx, contracts.SfrxusdRateCalc, nil, addrs.SfrxUSD)
	if xerr != nil {
		return xerr
	}
	r.policy, xerr = r.env.deploy(ctx, contracts.EMAMonetaryPolicy,
		&fork.TxOpts{GasTipCap: r.params.PriorityFee},
		addrs.Factory,
		r.calculator,
		addrs.CrvUSD,
		r.params.TargetU,
		r.params.LowRatio,
		r.params.HighRatio,
		r.params.RateShift,
	)
	return xerr
}

func (r *monpolRun) wire(ctx context.Context) xerrors.XError {
	rate, xerr := r.borrowAPR(ctx)
	if xerr != nil {
		return xerr
	}
	r.env.printf("sfrxUSD-long rate in LlamaLend vault with old contract is %s%%", rate.StringFixed(2))

	admin, xerr := r.env.Fork.Impersonate(ctx, r.env.Addresses.MarketAdmin)
	if xerr != nil {
		return xerr
	}
	if _, xerr := r.controller.Transact(ctx, admin, "set_monetary_policy", r.policy); xerr != nil {
		return xerr
	}
	if xerr := r.saveRate(ctx); xerr != nil {
		return xerr
	}

	if rate, xerr = r.borrowAPR(ctx); xerr != nil {
		return xerr
	}
	r.env.printf("sfrxUSD-long rate in LlamaLend vault with new SecondaryMonPol contract is %s%%", rate.StringFixed(2))
	return nil
}

func (r *monpolRun) warmUp(ctx context.Context) xerrors.XError {
	if xerr := r.setDistributionCap(ctx, r.params.LowCap); xerr != nil {
		return xerr
	}

	if xerr := r.env.Fork.Sleep(ctx, r.params.WarmUp); xerr != nil {
		return xerr
	}
	if xerr := r.saveRate(ctx); xerr != nil {
		return xerr
	}

	if xerr := r.printCalculatorRate(ctx); xerr != nil {
		return xerr
	}
	maRate, xerr := r.maRate(ctx)
	if xerr != nil {
		return xerr
	}
	r.env.printf("MonPol ma_rate() is %s%%", maRate.StringFixed(2))
	return nil
}

func (r *monpolRun) raiseAPR(ctx context.Context) xerrors.XError {
	if xerr := r.setDistributionCap(ctx, r.params.HighCap); xerr != nil {
		return xerr
	}

	r.env.println("AFTER MESS WITH RATES")
	if xerr := r.printCalculatorRate(ctx); xerr != nil {
		return xerr
	}

	target := metrics.PerSecondAPR(r.params.HighCap)
	return r.track(ctx, func(round int, elapsed uint64) xerrors.XError {
		maRate, xerr := r.maRate(ctx)
		if xerr != nil {
			return xerr
		}
		r.env.printf("MonPol ma_rate() is %s%%, %s%% of target %d hours after apr rise.",
			maRate.StringFixed(2), metrics.FractionOf(maRate, target).StringFixed(2), round)

		rate, xerr := r.borrowAPR(ctx)
		if xerr != nil {
			return xerr
		}
		r.env.Logger.Debug("borrow apr", "elapsed", elapsed, "apr", rate)
		return nil
	})
}

func (r *monpolRun) raiseUtilization(ctx context.Context) xerrors.XError {
	r.env.println("INCREASE MARKET UTILIZATION TEST")
	util, xerr := r.utilization(ctx)
	if xerr != nil {
		return xerr
	}
	r.env.printf("market utilization initially is %s%%", util.StringFixed(6))

	borrower, xerr := r.env.Fork.Impersonate(ctx, r.env.Addresses.Borrower)
	if xerr != nil {
		return xerr
	}
	bal, xerr := r.frxusd.CallUint(ctx, "balanceOf", borrower)
	if xerr != nil {
		return xerr
	}
	r.env.Logger.Debug("borrower", "address", borrower.Address(), "frxusd", lftypes.FormattedString(bal))

	rate, xerr := r.borrowAPR(ctx)
	if xerr != nil {
		return xerr
	}
	r.env.printf("sfrxUSD-long rate before increasing market utilization is %s%%", rate.StringFixed(2))
	maRate, xerr := r.maRate(ctx)
	if xerr != nil {
		return xerr
	}
	r.env.printf("MonPol ma_rate() is %s%%", maRate.StringFixed(2))

	if _, xerr := r.sfrxusd.Transact(ctx, borrower, "approve", r.controller, r.params.Approval); xerr != nil {
		return xerr
	}
	r.env.Logger.Info("creating loan",
		"collateral", lftypes.FormattedString(r.params.LoanCollateral),
		"debt", lftypes.FormattedString(r.params.LoanDebt),
		"bands", r.params.LoanBands)
	if _, xerr := r.controller.Transact(ctx, borrower, "create_loan",
		r.params.LoanCollateral, r.params.LoanDebt, uint256.NewInt(r.params.LoanBands)); xerr != nil {
		return xerr
	}

	if util, xerr = r.utilization(ctx); xerr != nil {
		return xerr
	}
	r.env.printf("market utilization after create loan is %s%%", util.StringFixed(6))

	if rate, xerr = r.borrowAPR(ctx); xerr != nil {
		return xerr
	}
	r.env.printf("sfrxUSD-long rate after increasing market utilization is %s%%", rate.StringFixed(2))
	return nil
}

func (r *monpolRun) dropAPR(ctx context.Context) xerrors.XError {
	r.env.println("TEST REDUCING SFRXUSD APR TO NEAR 0")
	if xerr := r.setDistributionCap(ctx, r.params.NearZeroCap); xerr != nil {
		return xerr
	}

	return r.track(ctx, func(round int, _ uint64) xerrors.XError {
		maRate, xerr := r.maRate(ctx)
		if xerr != nil {
			return xerr
		}
		r.env.printf("MonPol ma_rate() is %s%%", maRate.StringFixed(2))

		rate, xerr := r.borrowAPR(ctx)
		if xerr != nil {
			return xerr
		}
		r.env.printf("sfrxUSD-long rate in LlamaLend vault %d hours after apr decrease is %s%%", round, rate.StringFixed(2))
		return nil
	})
}

// track runs Steps rounds of save_rate, report, sleep(Step). The report
// labels a round with its counter as "hours" whatever Step is.
func (r *monpolRun) track(ctx context.Context, report func(round int, elapsed uint64) xerrors.XError) xerrors.XError {
	for i := 0; i < r.params.Steps; i++ {
		if xerr := r.saveRate(ctx); xerr != nil {
			return xerr
		}
		if xerr := report(i, uint64(i)*r.params.Step); xerr != nil {
			return xerr
		}
		if xerr := r.env.Fork.Sleep(ctx, r.params.Step); xerr != nil {
			return xerr
		}
	}
	return nil
}

// setDistributionCap changes sfrxUSD's max distribution as its owner,
// syncs the rewards and reports the resulting APR.
func (r *monpolRun) setDistributionCap(ctx context.Context, capPerSec *uint256.Int) xerrors.XError {
	owner, xerr := r.env.Fork.Impersonate(ctx, r.env.Addresses.SfrxUSDOwner)
	if xerr != nil {
		return xerr
	}
	if _, xerr := r.sfrxusd.Transact(ctx, owner, "setMaxDistributionPerSecondPerAsset", capPerSec); xerr != nil {
		return xerr
	}
	if _, xerr := r.sfrxusd.Transact(ctx, r.env.Deployer, "syncRewardsAndDistribution"); xerr != nil {
		return xerr
	}
	r.env.Logger.Info("set sfrxusd distribution cap", "cap", capPerSec.Dec(), "apr", metrics.PerSecondAPR(capPerSec))

	_, xerr = ReportSfrxusdAPR(ctx, r.env)
	return xerr
}

func (r *monpolRun) saveRate(ctx context.Context) xerrors.XError {
	_, xerr := r.controller.Transact(ctx, r.env.Deployer, "save_rate")
	return xerr
}

func (r *monpolRun) borrowAPR(ctx context.Context) (decimal.Decimal, xerrors.XError) {
	apr, xerr := r.vault.CallUint(ctx, "borrow_apr")
	if xerr != nil {
		return decimal.Zero, xerr
	}
	return metrics.BorrowAPR(apr), nil
}

func (r *monpolRun) maRate(ctx context.Context) (decimal.Decimal, xerrors.XError) {
	rate, xerr := r.policy.CallUint(ctx, "ma_rate")
	if xerr != nil {
		return decimal.Zero, xerr
	}
	return metrics.PerSecondAPR(rate), nil
}

func (r *monpolRun) printCalculatorRate(ctx context.Context) xerrors.XError {
	rate, xerr := r.calculator.CallUint(ctx, "rate")
	if xerr != nil {
		return xerr
	}
	r.env.printf("Rate in calculator is %s", rate.Dec())
	return nil
}

func (r *monpolRun) utilization(ctx context.Context) (decimal.Decimal, xerrors.XError) {
	debt, xerr := r.controller.CallUint(ctx, "total_debt")
	if xerr != nil {
		return decimal.Zero, xerr
	}
	assets, xerr := r.vault.CallUint(ctx, "totalAssets")
	if xerr != nil {
		return decimal.Zero, xerr
	}
	return metrics.Utilization(debt, assets)
}
