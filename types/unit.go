package types

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/shopspring/decimal"
)

const (
	DECIMAL int32 = 18
)

var (
	oneCoinWei = uint256.NewInt(1_000_000_000_000_000_000)
	oneGwei    = decimal.New(1, 9)
)

// ToWei returns n whole tokens as an 18-decimal fixed-point amount.
func ToWei(n int64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(n)), oneCoinWei)
}

// from wei to coin and Remain
func FromWeiRem(wei *uint256.Int) (*uint256.Int, *uint256.Int) {
	r := new(uint256.Int)
	q, r := new(uint256.Int).DivMod(wei, oneCoinWei, r)
	return q, r
}

func FormattedString(wei *uint256.Int) string {
	q, r := FromWeiRem(wei)
	return fmt.Sprintf("%s.%018d", q.Dec(), r.Uint64())
}

// ToDecimal shifts a raw fixed-point integer by `decimals` places.
// It is meant for display only.
func ToDecimal(x *uint256.Int, decimals int32) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -decimals)
}

// FromBig converts an abi-decoded integer. Negative or oversized values are rejected.
func FromBig(b *big.Int) (*uint256.Int, xerrors.XError) {
	if b == nil {
		return uint256.NewInt(0), nil
	}
	if b.Sign() < 0 {
		return nil, xerrors.ErrOverFlow.Wrapf("negative value %v", b)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, xerrors.ErrOverFlow.Wrapf("%v does not fit in 256 bits", b)
	}
	return u, nil
}

// ParseGwei parses a gwei amount such as "0.04" into wei.
func ParseGwei(s string) (*big.Int, xerrors.XError) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, xerrors.From(err)
	}
	wei := d.Mul(oneGwei)
	if !wei.IsInteger() || wei.IsNegative() {
		return nil, xerrors.NewOrdinary(fmt.Sprintf("invalid gwei amount: %s", s))
	}
	return wei.BigInt(), nil
}
