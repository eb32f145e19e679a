package types_test

import (
	"math/big"
	"math/rand"
	"strconv"
	"testing"

	"github.com/holiman/uint256"
	"github.com/lendfork/lendfork/types"
	"github.com/stretchr/testify/require"
)

func TestConvertAsset(t *testing.T) {
	r := rand.Int63()
	wei := types.ToWei(r)
	require.Equal(t, strconv.FormatInt(r, 10)+"000000000000000000", wei.Dec())

	q, rem := types.FromWeiRem(wei)
	require.Equal(t, uint64(r), q.Uint64())
	require.True(t, rem.IsZero())
}

func TestFormattedString(t *testing.T) {
	require.Equal(t, "1.500000000000000000", types.FormattedString(uint256.NewInt(1_500_000_000_000_000_000)))
	require.Equal(t, "0.000000000000000001", types.FormattedString(uint256.NewInt(1)))
}

func TestToDecimal(t *testing.T) {
	d := types.ToDecimal(uint256.NewInt(998_765_000_000_000_000), 18)
	require.Equal(t, "0.998765", d.String())
	require.True(t, types.ToDecimal(nil, 18).IsZero())
}

func TestFromBig(t *testing.T) {
	u, xerr := types.FromBig(big.NewInt(42))
	require.NoError(t, xerr)
	require.Equal(t, uint64(42), u.Uint64())

	u, xerr = types.FromBig(nil)
	require.NoError(t, xerr)
	require.True(t, u.IsZero())

	_, xerr = types.FromBig(big.NewInt(-1))
	require.Error(t, xerr)

	_, xerr = types.FromBig(new(big.Int).Lsh(big.NewInt(1), 256))
	require.Error(t, xerr)
}

func TestParseGwei(t *testing.T) {
	wei, xerr := types.ParseGwei("0.04")
	require.NoError(t, xerr)
	require.Equal(t, "40000000", wei.String())

	_, xerr = types.ParseGwei("0.0000000001")
	require.Error(t, xerr)
	_, xerr = types.ParseGwei("abc")
	require.Error(t, xerr)
}
