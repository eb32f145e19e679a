package scenario_test

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/fork/mocks"
	"github.com/lendfork/lendfork/scenario"
	"github.com/stretchr/testify/require"
	tmlog "github.com/tendermint/tendermint/libs/log"
)

// build artifacts of the contracts the scenarios deploy; the one byte
// bytecode tells the fake node which one is being created
var artifacts = map[string]struct {
	code byte
	abi  string
}{
	contracts.SfrxusdRateCalc: {0xc1, `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_vault","type":"address"}]},
		{"type":"function","name":"rate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`},
	contracts.EMAMonetaryPolicy: {0xc2, `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[
			{"name":"factory","type":"address"},{"name":"rate_calculator","type":"address"},{"name":"borrowed_token","type":"address"},
			{"name":"target_utilization","type":"uint256"},{"name":"low_ratio","type":"uint256"},{"name":"high_ratio","type":"uint256"},
			{"name":"rate_shift","type":"int256"}]},
		{"type":"function","name":"ma_rate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`},
	contracts.ReUsdFromOracleVault: {0xc3, `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_vault","type":"address"},{"name":"_oracle","type":"address"}]},
		{"type":"function","name":"price","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`},
	contracts.OracleProxy: {0xc4, `[
		{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_implementation","type":"address"},{"name":"_factory","type":"address"},{"name":"_max_deviation","type":"uint256"}]},
		{"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"max_deviation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"set_max_deviation","stateMutability":"nonpayable","inputs":[{"name":"_max_deviation","type":"uint256"}],"outputs":[]}]`},
}

var (
	e18        = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	factoryAdm = common.HexToAddress("0x00000000000000000000000000000000000ad111")
	ammAddr    = common.HexToAddress("0x00000000000000000000000000000000000a1111")
)

func wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), e18)
}

// world is a scripted mainnet fork: just enough contract behavior for the
// scenarios to run end to end.
type world struct {
	node  *mocks.Node
	env   *scenario.Env
	out   *bytes.Buffer
	addrs scenario.AddressBook

	deployed map[string]common.Address
	ctorArgs map[string][]interface{}

	// sfrxUSD
	distCap  *big.Int
	syncs    int
	approved *big.Int

	// sfrxUSD-long market
	policy    common.Address
	saveRates int
	debt      *big.Int

	// oracle market
	proxyAddr    common.Address
	maxDeviation *big.Int
	price        *big.Int
	poolPrice    *big.Int
	whaleShares  *big.Int
	createArgs   []interface{}
}

func newWorld(t *testing.T) *world {
	node := mocks.NewNode(3)
	f := fork.NewFork(node.Dial(), fork.DefaultOptions(), tmlog.NewNopLogger())
	t.Cleanup(func() {
		f.Close()
		node.Stop()
	})

	deployer, xerr := f.Account(context.Background(), 0)
	require.NoError(t, xerr)

	w := &world{
		node:     node,
		out:      &bytes.Buffer{},
		addrs:    scenario.DefaultAddressBook(),
		deployed: make(map[string]common.Address),
		ctorArgs: make(map[string][]interface{}),
		distCap:  big.NewInt(3_000_000_000),
		debt:     new(big.Int),
		price:    new(big.Int).Div(new(big.Int).Mul(e18, big.NewInt(10012)), big.NewInt(10000)),
	}
	w.env = &scenario.Env{
		Fork:         f,
		Deployer:     deployer,
		Addresses:    w.addrs,
		ArtifactsDir: writeArtifacts(t),
		Out:          w.out,
		Logger:       tmlog.NewNopLogger(),
	}

	w.scriptSfrxusd()
	w.scriptMarket()
	w.scriptOracleMarket()
	node.OnDeploy(w.onDeploy)
	return w
}

func writeArtifacts(t *testing.T) string {
	dir := t.TempDir()
	for name, art := range artifacts {
		p := filepath.Join(dir, "build", "contracts", name+".json")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o700))
		content := fmt.Sprintf(`{"contractName":%q,"abi":%s,"bytecode":"0x%02x"}`, name, art.abi, art.code)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return dir
}

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

func (w *world) onDeploy(addr, from common.Address, code []byte) error {
	for name, art := range artifacts {
		if len(code) == 0 || code[0] != art.code {
			continue
		}
		parsed := mustParse(art.abi)
		args, err := parsed.Constructor.Inputs.Unpack(code[1:])
		if err != nil {
			return err
		}
		w.deployed[name] = addr
		w.ctorArgs[name] = args

		c := w.node.Register(addr, parsed)
		switch name {
		case contracts.SfrxusdRateCalc:
			// the calculator follows sfrxUSD's capped rate
			c.On("rate", func(*mocks.Call) ([]interface{}, error) {
				return []interface{}{new(big.Int).Set(w.distCap)}, nil
			})
		case contracts.EMAMonetaryPolicy:
			c.On("ma_rate", func(*mocks.Call) ([]interface{}, error) {
				return []interface{}{new(big.Int).Set(w.distCap)}, nil
			})
		case contracts.ReUsdFromOracleVault:
			c.Returns("price", new(big.Int).Set(w.price))
		case contracts.OracleProxy:
			w.proxyAddr = addr
			w.maxDeviation = args[2].(*big.Int)
			c.Returns("implementation", args[0]).
				On("max_deviation", func(*mocks.Call) ([]interface{}, error) {
					return []interface{}{w.maxDeviation}, nil
				}).
				On("set_max_deviation", func(call *mocks.Call) ([]interface{}, error) {
					if call.From != factoryAdm {
						return nil, fmt.Errorf("only admin")
					}
					w.maxDeviation = call.Args[0].(*big.Int)
					return nil, nil
				})
		}
		return nil
	}
	return fmt.Errorf("unknown creation code %x", code)
}

func (w *world) scriptSfrxusd() {
	w.node.Register(w.addrs.SfrxUSD, contracts.MustABI(contracts.StakedFrxUSD)).
		On("rewardsCycleData", func(call *mocks.Call) ([]interface{}, error) {
			// one week cycle distributing 1 frxUSD per second
			lastSync := new(big.Int).SetUint64(call.Time)
			cycleEnd := new(big.Int).SetUint64(call.Time + 604800)
			return []interface{}{cycleEnd, lastSync, wei(604800)}, nil
		}).
		Returns("storedTotalAssets", wei(1_000_000)).
		On("maxDistributionPerSecondPerAsset", func(*mocks.Call) ([]interface{}, error) {
			return []interface{}{new(big.Int).Set(w.distCap)}, nil
		}).
		On("setMaxDistributionPerSecondPerAsset", func(call *mocks.Call) ([]interface{}, error) {
			if call.From != w.addrs.SfrxUSDOwner {
				return nil, fmt.Errorf("not owner")
			}
			w.distCap = call.Args[0].(*big.Int)
			return nil, nil
		}).
		On("syncRewardsAndDistribution", func(*mocks.Call) ([]interface{}, error) {
			w.syncs++
			return nil, nil
		}).
		On("approve", func(call *mocks.Call) ([]interface{}, error) {
			w.approved = call.Args[1].(*big.Int)
			return []interface{}{true}, nil
		})

	w.node.Register(w.addrs.FrxUSD, contracts.MustABI(contracts.ERC20)).
		Returns("balanceOf", wei(5))
}

func (w *world) scriptMarket() {
	w.node.Register(w.addrs.Controller, contracts.MustABI(contracts.LlamaLendController)).
		On("set_monetary_policy", func(call *mocks.Call) ([]interface{}, error) {
			if call.From != w.addrs.MarketAdmin {
				return nil, fmt.Errorf("only admin")
			}
			w.policy = call.Args[0].(common.Address)
			return nil, nil
		}).
		On("save_rate", func(*mocks.Call) ([]interface{}, error) {
			w.saveRates++
			return []interface{}{new(big.Int).Set(w.distCap)}, nil
		}).
		On("total_debt", func(*mocks.Call) ([]interface{}, error) {
			return []interface{}{new(big.Int).Set(w.debt)}, nil
		}).
		On("create_loan", func(call *mocks.Call) ([]interface{}, error) {
			if call.From != w.addrs.Borrower {
				return nil, fmt.Errorf("unexpected borrower %s", call.From.Hex())
			}
			if w.approved == nil || w.approved.Cmp(call.Args[0].(*big.Int)) < 0 {
				return nil, fmt.Errorf("not approved")
			}
			w.debt.Add(w.debt, call.Args[1].(*big.Int))
			return nil, nil
		})

	w.node.Register(w.addrs.Vault, contracts.MustABI(contracts.LlamaLendVault)).
		On("borrow_apr", func(*mocks.Call) ([]interface{}, error) {
			// 5% until the new policy is in, then 2x the policy's rate
			if w.policy == (common.Address{}) {
				return []interface{}{new(big.Int).Mul(big.NewInt(5), big.NewInt(1e16))}, nil
			}
			apr := new(big.Int).Mul(w.distCap, big.NewInt(2*31_536_000))
			return []interface{}{apr}, nil
		}).
		Returns("totalAssets", wei(4_000_000))
}

func (w *world) scriptOracleMarket() {
	factoryABI := contracts.MustABI(contracts.LlamaLendFactory)
	w.node.Register(w.addrs.Factory, factoryABI).
		Returns("admin", factoryAdm).
		On("create", func(call *mocks.Call) ([]interface{}, error) {
			w.createArgs = call.Args
			vault := common.HexToAddress("0x00000000000000000000000000000000000a0001")
			controller := common.HexToAddress("0x00000000000000000000000000000000000a0002")
			monpol := common.HexToAddress("0x00000000000000000000000000000000000a0003")
			if err := call.Emit("NewVault", big.NewInt(42), call.Args[1], call.Args[0],
				vault, controller, ammAddr, call.Args[6], monpol); err != nil {
				return nil, err
			}
			return []interface{}{vault}, nil
		})

	w.node.Register(ammAddr, contracts.MustABI(contracts.LlamaLendAMM)).
		On("price_oracle_contract", func(*mocks.Call) ([]interface{}, error) {
			return []interface{}{w.proxyAddr}, nil
		}).
		On("price_oracle", func(*mocks.Call) ([]interface{}, error) {
			return []interface{}{new(big.Int).Set(w.price)}, nil
		}).
		On("exchange", func(*mocks.Call) ([]interface{}, error) {
			// price_w picks up whatever the pool moved to
			if w.poolPrice != nil {
				w.price = w.poolPrice
			}
			return []interface{}{[2]*big.Int{big.NewInt(0), big.NewInt(0)}}, nil
		})

	w.node.Register(w.addrs.ReUSD, contracts.MustABI(contracts.ERC20)).
		Returns("balanceOf", wei(1000)).
		Returns("approve", true)
	w.node.Register(w.addrs.CrvUSD, contracts.MustABI(contracts.ERC20)).
		Returns("balanceOf", wei(3000)).
		Returns("approve", true)
	w.node.Register(w.addrs.ScrvUSD, contracts.MustABI(contracts.ERC4626)).
		On("deposit", func(call *mocks.Call) ([]interface{}, error) {
			w.whaleShares = new(big.Int).Div(call.Args[0].(*big.Int), big.NewInt(2))
			return []interface{}{w.whaleShares}, nil
		}).
		On("balanceOf", func(*mocks.Call) ([]interface{}, error) {
			if w.whaleShares == nil {
				return []interface{}{new(big.Int)}, nil
			}
			return []interface{}{w.whaleShares}, nil
		}).
		Returns("approve", true)

	w.node.Register(w.addrs.ReUSDPool, contracts.MustABI(contracts.StableSwapPool)).
		On("exchange", func(call *mocks.Call) ([]interface{}, error) {
			i := call.Args[0].(*big.Int)
			move := big.NewInt(129) // bps
			if i.Sign() == 0 {
				move.Neg(move)
			}
			w.poolPrice = new(big.Int).Div(new(big.Int).Mul(w.price, new(big.Int).Add(big.NewInt(10000), move)), big.NewInt(10000))
			return []interface{}{call.Args[2]}, nil
		})
}

func (w *world) lines() []string {
	return strings.Split(strings.TrimRight(w.out.String(), "\n"), "\n")
}

func count(journal []string, method string) int {
	n := 0
	for _, m := range journal {
		if m == method {
			n++
		}
	}
	return n
}
