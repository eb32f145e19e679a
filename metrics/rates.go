package metrics

import (
	"github.com/holiman/uint256"
	lftypes "github.com/lendfork/lendfork/types"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PerSecondAPR annualizes a 1e18-based per-second rate into a percentage:
// rate * 86400 * 365 / 1e16.
func PerSecondAPR(rate *uint256.Int) decimal.Decimal {
	return lftypes.ToDecimal(rate, 16).Mul(yearSeconds)
}

// BorrowAPR converts a 1e18-based annual rate into a percentage.
func BorrowAPR(apr *uint256.Int) decimal.Decimal {
	return lftypes.ToDecimal(apr, 16)
}

// Price converts a 1e18-based price.
func Price(p *uint256.Int) decimal.Decimal {
	return lftypes.ToDecimal(p, lftypes.DECIMAL)
}

// Utilization returns debt / assets in percent. A market without assets
// has no utilization and is reported as ErrDivByZero.
func Utilization(debt, assets *uint256.Int) (decimal.Decimal, xerrors.XError) {
	if assets == nil || assets.IsZero() {
		return decimal.Zero, xerrors.ErrDivByZero.Wrapf("utilization of a market without assets")
	}
	return FractionOf(
		lftypes.ToDecimal(debt, 0),
		lftypes.ToDecimal(assets, 0),
	), nil
}

// FractionOf returns value / target in percent, or 0 when target is 0.
func FractionOf(value, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		return decimal.Zero
	}
	return value.Mul(hundred).DivRound(target, 16)
}

func BpsToPercent(bps *uint256.Int) decimal.Decimal {
	return lftypes.ToDecimal(bps, 2)
}
