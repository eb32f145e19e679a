package scenario

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/metrics"
	"github.com/lendfork/lendfork/types/xerrors"
)

// OracleMarket is a LlamaLend market priced through an OracleProxy.
type OracleMarket struct {
	Implementation *contracts.Contract
	Proxy          *contracts.Contract
	Factory        *contracts.Contract

	Vault      common.Address
	Controller common.Address
	AMM        *contracts.Contract
}

// DeployOracleMarket deploys the reUSD oracle implementation (sfrxUSD stands
// in for the vault), an OracleProxy in front of it, and a LlamaLend market
// that prices its collateral through the proxy.
func DeployOracleMarket(ctx context.Context, env *Env, params OracleParams) (*OracleMarket, xerrors.XError) {
	if xerr := params.ValidateBasic(); xerr != nil {
		return nil, xerr
	}
	addrs := env.Addresses

	impl, xerr := env.deploy(ctx, contracts.ReUsdFromOracleVault, nil, addrs.SfrxUSD, addrs.ReUSDOracle)
	if xerr != nil {
		return nil, xerr
	}
	proxy, xerr := env.deploy(ctx, contracts.OracleProxy, nil, impl, addrs.Factory, uint256.NewInt(params.MaxDeviation))
	if xerr != nil {
		return nil, xerr
	}

	factory, xerr := env.at(contracts.LlamaLendFactory, addrs.Factory)
	if xerr != nil {
		return nil, xerr
	}
	receipt, xerr := factory.Transact(ctx, env.Deployer, "create",
		addrs.CrvUSD,  // borrowed
		addrs.SfrxUSD, // collateral
		params.A,
		params.Fee,
		params.LoanDiscount,
		params.LiquidationDiscount,
		proxy,
		params.MarketName,
		params.MinRate,
		params.MaxRate,
	)
	if xerr != nil {
		return nil, xerr
	}

	ev, xerr := factory.Event(receipt, "NewVault")
	if xerr != nil {
		return nil, xerr
	}
	market := &OracleMarket{
		Implementation: impl,
		Proxy:          proxy,
		Factory:        factory,
	}
	var ammAddr common.Address
	for field, dst := range map[string]*common.Address{
		"vault":      &market.Vault,
		"controller": &market.Controller,
		"amm":        &ammAddr,
	} {
		addr, ok := ev[field].(common.Address)
		if !ok {
			return nil, xerrors.ErrNotFoundEvent.Wrapf("NewVault.%s is %T", field, ev[field])
		}
		*dst = addr
	}
	if market.AMM, xerr = env.at(contracts.LlamaLendAMM, ammAddr); xerr != nil {
		return nil, xerr
	}

	env.Logger.Info("created market", "vault", market.Vault, "controller", market.Controller, "amm", ammAddr)
	return market, nil
}

// RunDownManipulation deploys a market, dumps the whale's reUSD into the
// reUSD/scrvUSD pool and reports how the AMM price follows once price_w runs.
func RunDownManipulation(ctx context.Context, env *Env, params OracleParams) xerrors.XError {
	market, xerr := deployAndReport(ctx, env, params)
	if xerr != nil {
		return xerr
	}

	addrs := env.Addresses
	reusd, xerr := env.at(contracts.ERC20, addrs.ReUSD)
	if xerr != nil {
		return xerr
	}
	pool, xerr := env.at(contracts.StableSwapPool, addrs.ReUSDPool)
	if xerr != nil {
		return xerr
	}
	whale, xerr := env.Fork.Impersonate(ctx, addrs.ReUSDWhale)
	if xerr != nil {
		return xerr
	}

	bal, xerr := reusd.CallUint(ctx, "balanceOf", whale)
	if xerr != nil {
		return xerr
	}
	if _, xerr := reusd.Transact(ctx, whale, "approve", pool, bal); xerr != nil {
		return xerr
	}
	if _, xerr := pool.Transact(ctx, whale, "exchange", big.NewInt(0), big.NewInt(1), bal, uint256.NewInt(0), whale); xerr != nil {
		return xerr
	}
	env.Logger.Info("sold reusd", "amount", bal.Dec())

	return settleAndReport(ctx, env, market, params)
}

// RunUpManipulation deploys a market, has the crvUSD whale deposit into
// scrvUSD and buy reUSD with the shares, then reports like RunDownManipulation.
func RunUpManipulation(ctx context.Context, env *Env, params OracleParams) xerrors.XError {
	market, xerr := deployAndReport(ctx, env, params)
	if xerr != nil {
		return xerr
	}

	addrs := env.Addresses
	crvusd, xerr := env.at(contracts.ERC20, addrs.CrvUSD)
	if xerr != nil {
		return xerr
	}
	scrvusd, xerr := env.at(contracts.ERC4626, addrs.ScrvUSD)
	if xerr != nil {
		return xerr
	}
	pool, xerr := env.at(contracts.StableSwapPool, addrs.ReUSDPool)
	if xerr != nil {
		return xerr
	}
	whale, xerr := env.Fork.Impersonate(ctx, addrs.CrvUSDWhale)
	if xerr != nil {
		return xerr
	}

	assets, xerr := crvusd.CallUint(ctx, "balanceOf", whale)
	if xerr != nil {
		return xerr
	}
	if _, xerr := crvusd.Transact(ctx, whale, "approve", scrvusd, assets); xerr != nil {
		return xerr
	}
	if _, xerr := scrvusd.Transact(ctx, whale, "deposit", assets, whale); xerr != nil {
		return xerr
	}

	shares, xerr := scrvusd.CallUint(ctx, "balanceOf", whale)
	if xerr != nil {
		return xerr
	}
	if _, xerr := scrvusd.Transact(ctx, whale, "approve", pool, shares); xerr != nil {
		return xerr
	}
	if _, xerr := pool.Transact(ctx, whale, "exchange", big.NewInt(1), big.NewInt(0), shares, uint256.NewInt(0), whale); xerr != nil {
		return xerr
	}
	env.Logger.Info("bought reusd", "crvusd", assets.Dec(), "scrvusd", shares.Dec())

	return settleAndReport(ctx, env, market, params)
}

func deployAndReport(ctx context.Context, env *Env, params OracleParams) (*OracleMarket, xerrors.XError) {
	market, xerr := DeployOracleMarket(ctx, env, params)
	if xerr != nil {
		return nil, xerr
	}

	proxyAddr, xerr := market.AMM.CallAddress(ctx, "price_oracle_contract")
	if xerr != nil {
		return nil, xerr
	}
	proxy, xerr := env.at(contracts.OracleProxy, proxyAddr)
	if xerr != nil {
		return nil, xerr
	}
	impl, xerr := proxy.CallAddress(ctx, "implementation")
	if xerr != nil {
		return nil, xerr
	}
	price, xerr := market.AMM.CallUint(ctx, "price_oracle")
	if xerr != nil {
		return nil, xerr
	}

	env.println("_____IMPL1 INSTANTIATED_____")
	env.printf("Market oracle proxy at address %s", proxyAddr.Hex())
	env.printf("Proxy implementation at address %s", impl.Hex())
	env.printf("Oracle price in AMM is %s", metrics.Price(price).String())
	return market, nil
}

// settleAndReport lets the oracle's EMA move, pokes the AMM so it calls
// price_w, and then raises the proxy's deviation bound as the factory admin.
func settleAndReport(ctx context.Context, env *Env, market *OracleMarket, params OracleParams) xerrors.XError {
	if xerr := env.Fork.Sleep(ctx, params.Settle); xerr != nil {
		return xerr
	}

	zero := uint256.NewInt(0)
	if _, xerr := market.AMM.Transact(ctx, env.Deployer, "exchange", zero, uint256.NewInt(1), zero, zero, env.Deployer); xerr != nil {
		return xerr
	}
	price, xerr := market.AMM.CallUint(ctx, "price_oracle")
	if xerr != nil {
		return xerr
	}

	env.println("_____Price_w TEST_____")
	env.printf("After manipulating reUSD/scrvUSD price oracle and calling exchange in AMM (price_w call), price in AMM is %s", metrics.Price(price).String())
	if xerr := printMaxDeviation(ctx, env, market.Proxy); xerr != nil {
		return xerr
	}

	adminAddr, xerr := market.Factory.CallAddress(ctx, "admin")
	if xerr != nil {
		return xerr
	}
	admin, xerr := env.Fork.Impersonate(ctx, adminAddr)
	if xerr != nil {
		return xerr
	}
	if _, xerr := market.Proxy.Transact(ctx, admin, "set_max_deviation", uint256.NewInt(params.NewMaxDeviation)); xerr != nil {
		return xerr
	}
	return printMaxDeviation(ctx, env, market.Proxy)
}

func printMaxDeviation(ctx context.Context, env *Env, proxy *contracts.Contract) xerrors.XError {
	bps, xerr := proxy.CallUint(ctx, "max_deviation")
	if xerr != nil {
		return xerr
	}
	env.printf("Max deviation is %s", bps.Dec())
	return nil
}

// RunAllManipulations runs both manipulations from the same fork state.
func RunAllManipulations(ctx context.Context, env *Env, params OracleParams) xerrors.XError {
	for _, run := range []func(context.Context, *Env, OracleParams) xerrors.XError{
		RunDownManipulation,
		RunUpManipulation,
	} {
		if xerr := RunIsolated(ctx, env, func(ctx context.Context, env *Env) xerrors.XError {
			return run(ctx, env, params)
		}); xerr != nil {
			return xerr
		}
	}
	return nil
}
