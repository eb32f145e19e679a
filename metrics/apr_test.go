package metrics

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	oneEther  = uint256.MustFromDecimal("1000000000000000000")
	unlimited = new(uint256.Int).SetAllOne()
)

func TestEstimateAPR_InactiveCycle(t *testing.T) {
	cycles := []RewardsCycle{
		{CycleEnd: 100, LastSync: 100, RewardAmount: uint256.NewInt(1_000_000)},
		{CycleEnd: 99, LastSync: 100, RewardAmount: oneEther},
		{CycleEnd: 0, LastSync: 0, RewardAmount: nil},
	}
	for _, c := range cycles {
		est := EstimateAPR(c, oneEther, unlimited)
		require.False(t, est.Active)
		require.Equal(t, uint64(0), est.Duration)
		require.True(t, est.Rate.IsZero())
		require.True(t, est.Percent.IsZero(), est.Percent.String())
	}
}

func TestEstimateAPR_ZeroAssets(t *testing.T) {
	cycle := RewardsCycle{CycleEnd: 1000, LastSync: 0, RewardAmount: uint256.NewInt(5000)}

	zero := EstimateAPR(cycle, uint256.NewInt(0), unlimited)
	one := EstimateAPR(cycle, uint256.NewInt(1), unlimited)
	require.Equal(t, uint64(1), zero.Assets.Uint64())
	require.Equal(t, one.PerSecond, zero.PerSecond)
	require.True(t, one.Percent.Equal(zero.Percent))

	// nil is read as zero
	nilAssets := EstimateAPR(cycle, nil, unlimited)
	require.Equal(t, one.PerSecond, nilAssets.PerSecond)

	// 5000 / 1000 = 5 per second, scaled by 1e18 over 1 unit of asset
	require.Equal(t, "5000000000000000000", zero.PerSecond.Dec())
}

func TestEstimateAPR_ZeroReward(t *testing.T) {
	cycle := RewardsCycle{CycleEnd: 604800, LastSync: 0, RewardAmount: uint256.NewInt(0)}
	est := EstimateAPR(cycle, oneEther, unlimited)
	require.True(t, est.Active)
	require.True(t, est.PerSecond.IsZero())
	require.True(t, est.Percent.IsZero())
}

func TestEstimateAPR_Fixtures(t *testing.T) {
	cases := []struct {
		name      string
		cycle     RewardsCycle
		assets    *uint256.Int
		maxDistro *uint256.Int
		perSecond string
		rate      string
		percent   string
	}{
		{
			// one unit of asset earning 1e18/year
			name:      "parity",
			cycle:     RewardsCycle{CycleEnd: 100000, LastSync: 0, RewardAmount: uint256.MustFromDecimal("3170979198300000")},
			assets:    oneEther,
			maxDistro: unlimited,
			perSecond: "31709791983",
			rate:      "31709791983",
			percent:   "99.9999999975888",
		},
		{
			name:      "weekly cycle unclamped",
			cycle:     RewardsCycle{CycleEnd: 1_700_604_800, LastSync: 1_700_000_000, RewardAmount: uint256.MustFromDecimal("10000000000000000000")},
			assets:    uint256.MustFromDecimal("1000000000000000000000"),
			maxDistro: unlimited,
			perSecond: "16534391534",
			rate:      "16534391534",
			percent:   "52.1428571416224",
		},
		{
			name:      "weekly cycle clamped to 4%",
			cycle:     RewardsCycle{CycleEnd: 1_700_604_800, LastSync: 1_700_000_000, RewardAmount: uint256.MustFromDecimal("10000000000000000000")},
			assets:    uint256.MustFromDecimal("1000000000000000000000"),
			maxDistro: uint256.NewInt(1278821663),
			perSecond: "16534391534",
			rate:      "1278821663",
			percent:   "4.0328919964368",
		},
		{
			name:      "clamped to 1",
			cycle:     RewardsCycle{CycleEnd: 604800, LastSync: 0, RewardAmount: uint256.MustFromDecimal("10000000000000000000")},
			assets:    uint256.MustFromDecimal("1000000000000000000000"),
			maxDistro: uint256.NewInt(1),
			perSecond: "16534391534",
			rate:      "1",
			percent:   "0.0000000031536",
		},
	}

	for _, c := range cases {
		est := EstimateAPR(c.cycle, c.assets, c.maxDistro)
		require.True(t, est.Active, c.name)
		require.Equal(t, c.cycle.CycleEnd-c.cycle.LastSync, est.Duration, c.name)
		require.Equal(t, c.perSecond, est.PerSecond.Dec(), c.name)
		require.Equal(t, c.rate, est.Rate.Dec(), c.name)
		require.Equal(t, c.percent, est.Percent.String(), c.name)
	}
}

func TestEstimateAPR_ReportsIntegerDivision(t *testing.T) {
	// 10 / 3 truncates to 3 per second before scaling
	cycle := RewardsCycle{CycleEnd: 3, LastSync: 0, RewardAmount: uint256.NewInt(10)}
	est := EstimateAPR(cycle, oneEther, unlimited)
	require.Equal(t, "3", est.PerSecond.Dec())
}

func TestEstimateAPR_NoOverflow(t *testing.T) {
	// uint216 max reward over one second on one unit of asset does not wrap
	maxReward := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 216), uint256.NewInt(1))
	cycle := RewardsCycle{CycleEnd: 1, LastSync: 0, RewardAmount: maxReward}

	est := EstimateAPR(cycle, uint256.NewInt(0), unlimited)
	require.Equal(t, unlimited, est.PerSecond)

	capped := EstimateAPR(cycle, uint256.NewInt(0), uint256.NewInt(2557643327))
	require.Equal(t, "8.0657839960272", capped.Percent.String())
}

func TestEstimateAPR_Monotonic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	assets := uint256.MustFromDecimal("2500000000000000000000000")
	maxDistro := uint256.NewInt(2557643327)
	capPercent := PerSecondAPR(maxDistro)

	for i := 0; i < 200; i++ {
		duration := uint64(r.Int63n(30*DaySeconds) + 1)
		cycle := RewardsCycle{CycleEnd: 1_000_000 + duration, LastSync: 1_000_000}

		prev := decimal.Zero
		amt := new(uint256.Int)
		for j := 0; j < 20; j++ {
			step := new(uint256.Int).Mul(uint256.NewInt(uint64(r.Int63n(1_000_000_000))), uint256.NewInt(1_000_000_000_000))
			amt = new(uint256.Int).Add(amt, step)
			cycle.RewardAmount = amt

			est := EstimateAPR(cycle, assets, maxDistro)
			require.True(t, est.Percent.GreaterThanOrEqual(prev), "decreased at %v", amt)
			require.True(t, est.Percent.LessThanOrEqual(capPercent), "exceeded cap at %v", amt)
			require.True(t, est.Rate.Cmp(maxDistro) <= 0)
			prev = est.Percent
		}
	}
}

func TestEstimateAPR_DoesNotAliasInputs(t *testing.T) {
	assets := uint256.NewInt(0)
	maxDistro := uint256.NewInt(10)
	cycle := RewardsCycle{CycleEnd: 10, LastSync: 0, RewardAmount: uint256.NewInt(100)}

	est := EstimateAPR(cycle, assets, maxDistro)
	est.Rate.SetUint64(999)
	est.Assets.SetUint64(999)
	require.True(t, assets.IsZero())
	require.Equal(t, uint64(10), maxDistro.Uint64())
}
