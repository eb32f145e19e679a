package fork

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lendfork/lendfork/types/xerrors"
	tmlog "github.com/tendermint/tendermint/libs/log"
)

type Options struct {
	Dialect Dialect
	// PollInterval is the delay between two receipt lookups.
	PollInterval time.Duration
	// TxTimeout bounds the wait for a single receipt.
	TxTimeout time.Duration
	// MinBalance is the gas money an impersonated account is topped up to.
	// Zero disables funding.
	MinBalance *big.Int
}

func DefaultOptions() Options {
	return Options{
		Dialect:      DialectAnvil,
		PollInterval: 100 * time.Millisecond,
		TxTimeout:    2 * time.Minute,
		MinBalance:   new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000)),
	}
}

// Fork is a handle on a forked chain served by a development node.
type Fork struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	opts Options

	chainID      *big.Int
	impersonated map[common.Address]*Account

	logger tmlog.Logger
	mtx    sync.Mutex
}

func Dial(ctx context.Context, url string, opts Options, logger tmlog.Logger) (*Fork, xerrors.XError) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, xerrors.ErrConfig.Wrapf("rpc url required")
	}
	client, err := rpc.DialContext(ctx, trimmed)
	if err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	return NewFork(client, opts, logger), nil
}

func NewFork(client *rpc.Client, opts Options, logger tmlog.Logger) *Fork {
	def := DefaultOptions()
	if opts.Dialect == "" {
		opts.Dialect = def.Dialect
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = def.TxTimeout
	}
	return &Fork{
		rpc:          client,
		eth:          ethclient.NewClient(client),
		opts:         opts,
		impersonated: make(map[common.Address]*Account),
		logger:       logger.With("module", "fork"),
	}
}

func (f *Fork) Close() {
	f.rpc.Close()
}

func (f *Fork) Client() *ethclient.Client {
	return f.eth
}

func (f *Fork) Dialect() Dialect {
	return f.opts.Dialect
}

func (f *Fork) ChainID(ctx context.Context) (*big.Int, xerrors.XError) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.chainID != nil {
		return f.chainID, nil
	}
	id, err := f.eth.ChainID(ctx)
	if err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	f.chainID = id
	return id, nil
}

// Sleep advances the fork clock. Like brownie's chain.sleep it does not mine;
// the next transaction lands in a block with the advanced timestamp.
func (f *Fork) Sleep(ctx context.Context, seconds uint64) xerrors.XError {
	if err := f.rpc.CallContext(ctx, nil, "evm_increaseTime", seconds); err != nil {
		return xerrors.ErrRPC.Wrap(err)
	}
	f.logger.Debug("advanced time", "seconds", seconds)
	return nil
}

func (f *Fork) Mine(ctx context.Context) xerrors.XError {
	if err := f.rpc.CallContext(ctx, nil, "evm_mine"); err != nil {
		return xerrors.ErrRPC.Wrap(err)
	}
	return nil
}

func (f *Fork) Snapshot(ctx context.Context) (*big.Int, xerrors.XError) {
	var id hexutil.Big
	if err := f.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	f.logger.Debug("took snapshot", "id", id.String())
	return id.ToInt(), nil
}

func (f *Fork) Revert(ctx context.Context, id *big.Int) xerrors.XError {
	var ok bool
	if err := f.rpc.CallContext(ctx, &ok, "evm_revert", (*hexutil.Big)(id)); err != nil {
		return xerrors.ErrRPC.Wrap(err)
	}
	if !ok {
		return xerrors.ErrRPC.Wrapf("snapshot %v not reverted", id)
	}

	// impersonation is node state; ask again after a revert
	f.mtx.Lock()
	f.impersonated = make(map[common.Address]*Account)
	f.mtx.Unlock()

	f.logger.Debug("reverted to snapshot", "id", id)
	return nil
}

func (f *Fork) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, xerrors.XError) {
	bal, err := f.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	return bal, nil
}

func (f *Fork) SetBalance(ctx context.Context, addr common.Address, wei *big.Int) xerrors.XError {
	if err := f.rpc.CallContext(ctx, nil, f.opts.Dialect.method("setBalance"), addr, (*hexutil.Big)(wei)); err != nil {
		return xerrors.ErrRPC.Wrap(err)
	}
	return nil
}

// Call runs a read-only call against the latest block.
func (f *Fork) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, xerrors.XError) {
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}
	ret, err := f.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, classify(err)
	}
	return ret, nil
}
