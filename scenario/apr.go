package scenario

import (
	"context"

	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/metrics"
	"github.com/lendfork/lendfork/types/xerrors"
)

// ReportSfrxusdAPR reads sfrxUSD's current reward cycle, prints the trace of
// the APR estimate and returns it.
func ReportSfrxusdAPR(ctx context.Context, env *Env) (metrics.APREstimate, xerrors.XError) {
	sfrxusd, xerr := env.at(contracts.StakedFrxUSD, env.Addresses.SfrxUSD)
	if xerr != nil {
		return metrics.APREstimate{}, xerr
	}

	data, xerr := sfrxusd.CallUints(ctx, "rewardsCycleData")
	if xerr != nil {
		return metrics.APREstimate{}, xerr
	}
	if len(data) != 3 {
		return metrics.APREstimate{}, xerrors.ErrABI.Wrapf("rewardsCycleData returned %d values", len(data))
	}
	// cycleEnd and lastSync are uint40
	cycle := metrics.RewardsCycle{
		CycleEnd:     data[0].Uint64(),
		LastSync:     data[1].Uint64(),
		RewardAmount: data[2],
	}
	env.printf("%d, %d, %s", cycle.CycleEnd, cycle.LastSync, cycle.RewardAmount.Dec())
	env.printf("duration: %d", int64(cycle.CycleEnd)-int64(cycle.LastSync))
	if !cycle.Active() {
		return metrics.EstimateAPR(cycle, nil, nil), nil
	}

	assets, xerr := sfrxusd.CallUint(ctx, "storedTotalAssets")
	if xerr != nil {
		return metrics.APREstimate{}, xerr
	}
	env.printf("Assets: %s", assets.Dec())

	maxDistro, xerr := sfrxusd.CallUint(ctx, "maxDistributionPerSecondPerAsset")
	if xerr != nil {
		return metrics.APREstimate{}, xerr
	}
	env.printf("Max Distro: %s", maxDistro.Dec())

	est := metrics.EstimateAPR(cycle, assets, maxDistro)
	env.printf("Frax per second: %s", est.PerSecond.Dec())
	env.printf("frxUSD apr is %s%%", est.Percent.String())

	env.Logger.Debug("sfrxusd apr", "duration", est.Duration, "rate", est.Rate.Dec(), "apr", est.Percent)
	return est, nil
}
