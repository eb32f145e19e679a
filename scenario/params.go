package scenario

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	lftypes "github.com/lendfork/lendfork/types"
	"github.com/lendfork/lendfork/types/xerrors"
)

// AddressBook holds the on-chain addresses the scenarios talk to.
// Defaults are Ethereum mainnet.
type AddressBook struct {
	FrxUSD       common.Address `mapstructure:"frxusd"`
	SfrxUSD      common.Address `mapstructure:"sfrxusd"`
	SfrxUSDOwner common.Address `mapstructure:"sfrxusd_owner"`

	// sfrxUSD-long LlamaLend market
	Controller  common.Address `mapstructure:"controller"`
	Vault       common.Address `mapstructure:"vault"`
	MarketAdmin common.Address `mapstructure:"market_admin"`
	Borrower    common.Address `mapstructure:"borrower"`

	Factory common.Address `mapstructure:"factory"`
	CrvUSD  common.Address `mapstructure:"crvusd"`

	ReUSD       common.Address `mapstructure:"reusd"`
	ReUSDOracle common.Address `mapstructure:"reusd_oracle"`
	ReUSDWhale  common.Address `mapstructure:"reusd_whale"`
	ReUSDPool   common.Address `mapstructure:"reusd_scrvusd_pool"`
	ScrvUSD     common.Address `mapstructure:"scrvusd"`
	CrvUSDWhale common.Address `mapstructure:"crvusd_whale"`
}

func DefaultAddressBook() AddressBook {
	return AddressBook{
		FrxUSD:       common.HexToAddress("0xCAcd6fd266aF91b8AeD52aCCc382b4e165586E29"),
		SfrxUSD:      common.HexToAddress("0xcf62F905562626CfcDD2261162a51fd02Fc9c5b6"),
		SfrxUSDOwner: common.HexToAddress("0xB1748C79709f4Ba2Dd82834B8c82D4a505003f27"),
		Controller:   common.HexToAddress("0x3DE37c38739dFb83b7A902842bF5393040f7BF50"),
		Vault:        common.HexToAddress("0x8E3009b59200668e1efda0a2F2Ac42b24baa2982"),
		MarketAdmin:  common.HexToAddress("0x40907540d8a6C65c637785e8f8B742ae6b0b9968"),
		Borrower:     common.HexToAddress("0x70644a67a01971c28395327Ca9846E0247313bC9"),
		Factory:      common.HexToAddress("0xeA6876DDE9e3467564acBeE1Ed5bac88783205E0"),
		CrvUSD:       common.HexToAddress("0xf939E0A03FB07F59A73314E73794Be0E57ac1b4E"),
		ReUSD:        common.HexToAddress("0x57aB1E0003F623289CD798B1824Be09a793e4Bec"),
		ReUSDOracle:  common.HexToAddress("0x07Ac1E016D4335FB833666ed5C43846162d2B7e8"),
		ReUSDWhale:   common.HexToAddress("0x00000000efe883b3304aFf71eaCf72Dbc3e1b577"),
		ReUSDPool:    common.HexToAddress("0xc522A6606BBA746d7960404F22a3DB936B6F4F50"),
		ScrvUSD:      common.HexToAddress("0x0655977FEb2f289A4aB78af67BAB0d17aAb84367"),
		CrvUSDWhale:  common.HexToAddress("0xA920De414eA4Ab66b97dA1bFE9e6EcA7d4219635"),
	}
}

// ValidateBasic rejects unset addresses.
func (b AddressBook) ValidateBasic() xerrors.XError {
	for name, addr := range map[string]common.Address{
		"frxusd":             b.FrxUSD,
		"sfrxusd":            b.SfrxUSD,
		"sfrxusd_owner":      b.SfrxUSDOwner,
		"controller":         b.Controller,
		"vault":              b.Vault,
		"market_admin":       b.MarketAdmin,
		"borrower":           b.Borrower,
		"factory":            b.Factory,
		"crvusd":             b.CrvUSD,
		"reusd":              b.ReUSD,
		"reusd_oracle":       b.ReUSDOracle,
		"reusd_whale":        b.ReUSDWhale,
		"reusd_scrvusd_pool": b.ReUSDPool,
		"scrvusd":            b.ScrvUSD,
		"crvusd_whale":       b.CrvUSDWhale,
	} {
		if addr == (common.Address{}) {
			return xerrors.ErrInvalidAddress.Wrapf("addresses.%s is not set", name)
		}
	}
	return nil
}

// MonPolParams drives DeployMonetaryPolicy.
type MonPolParams struct {
	// EMAMonetaryPolicy constructor
	TargetU   *uint256.Int
	LowRatio  *uint256.Int
	HighRatio *uint256.Int
	RateShift *uint256.Int

	// PriorityFee is the tip paid for the policy deployment.
	PriorityFee *big.Int

	// sfrxUSD distribution caps (per second per asset, 1e18 based)
	LowCap      *uint256.Int
	HighCap     *uint256.Int
	NearZeroCap *uint256.Int

	// WarmUp is the time slept after the first cap change.
	WarmUp uint64
	// Steps save_rate rounds are run after each later cap change, Step seconds apart.
	Steps int
	Step  uint64

	// utilization test
	Approval       *uint256.Int
	LoanCollateral *uint256.Int
	LoanDebt       *uint256.Int
	LoanBands      uint64
}

func DefaultMonPolParams() MonPolParams {
	return MonPolParams{
		TargetU:        uint256.NewInt(850_000_000_000_000_000),
		LowRatio:       uint256.NewInt(200_000_000_000_000_000),
		HighRatio:      uint256.NewInt(7_200_000_000_000_000_000),
		RateShift:      uint256.NewInt(0),
		PriorityFee:    big.NewInt(40_000_000), // 0.04 gwei
		LowCap:         uint256.NewInt(1_278_821_663),
		HighCap:        uint256.NewInt(2_557_643_327),
		NearZeroCap:    uint256.NewInt(1),
		WarmUp:         10 * 86400,
		Steps:          24,
		Step:           7200,
		Approval:       lftypes.ToWei(10_000_000),
		LoanCollateral: lftypes.ToWei(2_100_000),
		LoanDebt:       lftypes.ToWei(2_000_000),
		LoanBands:      4,
	}
}

func (p MonPolParams) ValidateBasic() xerrors.XError {
	for name, v := range map[string]*uint256.Int{
		"target_u":        p.TargetU,
		"low_ratio":       p.LowRatio,
		"high_ratio":      p.HighRatio,
		"rate_shift":      p.RateShift,
		"low_cap":         p.LowCap,
		"high_cap":        p.HighCap,
		"near_zero_cap":   p.NearZeroCap,
		"approval":        p.Approval,
		"loan_collateral": p.LoanCollateral,
		"loan_debt":       p.LoanDebt,
	} {
		if v == nil {
			return xerrors.ErrConfig.Wrapf("monpol.%s is not set", name)
		}
	}
	if p.Steps < 0 {
		return xerrors.ErrConfig.Wrapf("monpol.steps is negative")
	}
	if p.LoanBands == 0 {
		return xerrors.ErrConfig.Wrapf("monpol.loan_bands must be positive")
	}
	return nil
}

// OracleParams drives the oracle market scenarios.
type OracleParams struct {
	// MaxDeviation is the proxy's initial bound in basis points and
	// NewMaxDeviation the one the factory admin sets afterwards.
	MaxDeviation    uint64
	NewMaxDeviation uint64

	// factory.create arguments
	MarketName          string
	A                   *uint256.Int
	Fee                 *uint256.Int
	LoanDiscount        *uint256.Int
	LiquidationDiscount *uint256.Int
	MinRate             *uint256.Int
	MaxRate             *uint256.Int

	// Settle is the time slept after the pool is pushed.
	Settle uint64
}

func DefaultOracleParams() OracleParams {
	return OracleParams{
		MaxDeviation:        500,
		NewMaxDeviation:     2000,
		MarketName:          "sfrxUSD",
		A:                   uint256.NewInt(300),
		Fee:                 uint256.NewInt(2_000_000_000_000_000),
		LoanDiscount:        uint256.NewInt(13_000_000_000_000_000),
		LiquidationDiscount: uint256.NewInt(10_000_000_000_000_000),
		MinRate:             uint256.NewInt(31_709_791),
		MaxRate:             uint256.NewInt(7_927_447_995),
		Settle:              86400,
	}
}

func (p OracleParams) ValidateBasic() xerrors.XError {
	if p.MaxDeviation == 0 || p.MaxDeviation > 10_000 {
		return xerrors.ErrConfig.Wrapf("oracle.max_deviation %d out of (0, 10000] bps", p.MaxDeviation)
	}
	if p.NewMaxDeviation == 0 || p.NewMaxDeviation > 10_000 {
		return xerrors.ErrConfig.Wrapf("oracle.new_max_deviation %d out of (0, 10000] bps", p.NewMaxDeviation)
	}
	if p.A == nil || p.Fee == nil || p.LoanDiscount == nil || p.LiquidationDiscount == nil || p.MinRate == nil || p.MaxRate == nil {
		return xerrors.ErrConfig.Wrapf("oracle market parameters are not set")
	}
	if p.MinRate.Gt(p.MaxRate) {
		return xerrors.ErrConfig.Wrapf("oracle.min_rate above max_rate")
	}
	return nil
}
