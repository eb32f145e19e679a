// Package metrics converts raw on-chain fixed-point values into the
// human-readable figures the scenarios print. Nothing here feeds back into
// a transaction; results are for display only.
package metrics

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	DaySeconds  = 86400
	YearSeconds = 365 * DaySeconds
)

var (
	wad         = uint256.NewInt(1_000_000_000_000_000_000)
	maxUint256  = new(uint256.Int).SetAllOne()
	yearSeconds = decimal.NewFromInt(YearSeconds)
)

// RewardsCycle is the (cycleEnd, lastSync, rewardCycleAmount) tuple returned
// by a staked-frxUSD style vault.
type RewardsCycle struct {
	CycleEnd     uint64
	LastSync     uint64
	RewardAmount *uint256.Int
}

// Duration returns cycleEnd - lastSync, or 0 for an inactive cycle.
func (c RewardsCycle) Duration() uint64 {
	if c.CycleEnd <= c.LastSync {
		return 0
	}
	return c.CycleEnd - c.LastSync
}

func (c RewardsCycle) Active() bool {
	return c.CycleEnd > c.LastSync
}

// APREstimate keeps every intermediate of EstimateAPR so callers can trace it.
type APREstimate struct {
	Cycle RewardsCycle

	Active   bool
	Duration uint64
	// Assets is the total asset value after the zero guard.
	Assets          *uint256.Int
	MaxDistribution *uint256.Int
	// PerSecond is the unclamped reward rate per second per asset (1e18 based).
	PerSecond *uint256.Int
	// Rate is PerSecond clamped to MaxDistribution.
	Rate    *uint256.Int
	Percent decimal.Decimal
}

// EstimateAPR computes the annualized rate implied by the current reward
// cycle. The per-second rate is clamped before it is annualized.
func EstimateAPR(cycle RewardsCycle, assets, maxDistro *uint256.Int) APREstimate {
	est := APREstimate{
		Cycle:           cycle,
		Assets:          orZero(assets),
		MaxDistribution: orZero(maxDistro),
		PerSecond:       uint256.NewInt(0),
		Rate:            uint256.NewInt(0),
		Percent:         decimal.Zero,
	}
	if !cycle.Active() {
		return est
	}
	est.Active = true
	est.Duration = cycle.Duration()

	if est.Assets.IsZero() {
		est.Assets = uint256.NewInt(1)
	}

	rewardPerSec := new(uint256.Int).Div(orZero(cycle.RewardAmount), uint256.NewInt(est.Duration))
	perSec, overflow := new(uint256.Int).MulDivOverflow(rewardPerSec, wad, est.Assets)
	if overflow {
		perSec = maxUint256.Clone()
	}
	est.PerSecond = perSec

	est.Rate = perSec.Clone()
	if est.Rate.Gt(est.MaxDistribution) {
		est.Rate = est.MaxDistribution.Clone()
	}

	est.Percent = PerSecondAPR(est.Rate)
	return est
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return uint256.NewInt(0)
	}
	return x.Clone()
}
