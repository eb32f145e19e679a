package fork

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lendfork/lendfork/types/xerrors"
)

type AccountKind int

const (
	Unlocked AccountKind = iota
	Impersonated
	Keyed
)

func (k AccountKind) String() string {
	switch k {
	case Unlocked:
		return "unlocked"
	case Impersonated:
		return "impersonated"
	case Keyed:
		return "keyed"
	default:
		return fmt.Sprintf("AccountKind(%d)", int(k))
	}
}

// Account is a transaction sender on the fork.
type Account struct {
	addr   common.Address
	kind   AccountKind
	signer signer
}

func (a *Account) Address() common.Address {
	return a.addr
}

func (a *Account) Kind() AccountKind {
	return a.kind
}

func (a *Account) String() string {
	return fmt.Sprintf("%s(%s)", a.addr.Hex(), a.kind)
}

// TxOpts carries the optional transaction fields. A nil *TxOpts lets the
// node pick everything.
type TxOpts struct {
	Value     *big.Int
	GasLimit  uint64
	GasTipCap *big.Int
}

type signer interface {
	send(ctx context.Context, f *Fork, from common.Address, to *common.Address, data []byte, opts *TxOpts) (common.Hash, error)
}

// nodeSigner lets the node sign: dev accounts and impersonated addresses.
type nodeSigner struct{}

type sendTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Data                 hexutil.Bytes   `json:"data"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
}

func (nodeSigner) send(ctx context.Context, f *Fork, from common.Address, to *common.Address, data []byte, opts *TxOpts) (common.Hash, error) {
	args := sendTxArgs{
		From: from,
		To:   to,
		Data: data,
	}
	if opts != nil {
		if opts.Value != nil {
			args.Value = (*hexutil.Big)(opts.Value)
		}
		if opts.GasLimit > 0 {
			gas := hexutil.Uint64(opts.GasLimit)
			args.Gas = &gas
		}
		if opts.GasTipCap != nil {
			args.MaxPriorityFeePerGas = (*hexutil.Big)(opts.GasTipCap)
		}
	}

	var hash common.Hash
	if err := f.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// keySigner signs locally and submits raw transactions.
type keySigner struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func (s *keySigner) send(ctx context.Context, f *Fork, from common.Address, to *common.Address, data []byte, opts *TxOpts) (common.Hash, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	auth.Context = ctx
	if opts != nil {
		auth.Value = opts.Value
		auth.GasLimit = opts.GasLimit
		auth.GasTipCap = opts.GasTipCap
	}

	if to == nil {
		// creation code already carries the packed constructor arguments
		_, tx, _, err := bind.DeployContract(auth, abi.ABI{}, data, f.eth)
		if err != nil {
			return common.Hash{}, err
		}
		return tx.Hash(), nil
	}

	tx, err := bind.NewBoundContract(*to, abi.ABI{}, f.eth, f.eth, f.eth).RawTransact(auth, data)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// Accounts returns the node's unlocked dev accounts.
func (f *Fork) Accounts(ctx context.Context) ([]*Account, xerrors.XError) {
	var addrs []common.Address
	if err := f.rpc.CallContext(ctx, &addrs, "eth_accounts"); err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	accts := make([]*Account, len(addrs))
	for i, addr := range addrs {
		accts[i] = &Account{addr: addr, kind: Unlocked, signer: nodeSigner{}}
	}
	return accts, nil
}

// Account returns the i-th unlocked dev account, brownie's accounts[i].
func (f *Fork) Account(ctx context.Context, i int) (*Account, xerrors.XError) {
	accts, xerr := f.Accounts(ctx)
	if xerr != nil {
		return nil, xerr
	}
	if i < 0 || i >= len(accts) {
		return nil, xerrors.ErrNotFoundAccount.Wrapf("index %d of %d unlocked accounts", i, len(accts))
	}
	return accts[i], nil
}

// Impersonate acquires authority over addr without its key and makes sure it
// can pay for gas. Repeated calls return the same handle.
func (f *Fork) Impersonate(ctx context.Context, addr common.Address) (*Account, xerrors.XError) {
	f.mtx.Lock()
	acct, ok := f.impersonated[addr]
	f.mtx.Unlock()
	if ok {
		return acct, nil
	}

	if err := f.impersonate(ctx, addr); err != nil {
		return nil, xerrors.ErrRPC.Wrap(err)
	}
	if xerr := f.ensureGasMoney(ctx, addr); xerr != nil {
		return nil, xerr
	}

	acct = &Account{addr: addr, kind: Impersonated, signer: nodeSigner{}}

	f.mtx.Lock()
	f.impersonated[addr] = acct
	f.mtx.Unlock()

	f.logger.Info("impersonating", "address", addr)
	return acct, nil
}

func (f *Fork) StopImpersonating(ctx context.Context, addr common.Address) xerrors.XError {
	if err := f.stopImpersonating(ctx, addr); err != nil {
		return xerrors.ErrRPC.Wrap(err)
	}

	f.mtx.Lock()
	delete(f.impersonated, addr)
	f.mtx.Unlock()
	return nil
}

func (f *Fork) ensureGasMoney(ctx context.Context, addr common.Address) xerrors.XError {
	if f.opts.MinBalance == nil || f.opts.MinBalance.Sign() <= 0 {
		return nil
	}
	f.logger.Debug("funding account", "address", addr, "target", f.opts.MinBalance)
	return f.FundAccount(ctx, addr, f.opts.MinBalance)
}

// FundAccount tops addr up to wei. Balances already above it are left alone.
func (f *Fork) FundAccount(ctx context.Context, addr common.Address, wei *big.Int) xerrors.XError {
	bal, xerr := f.BalanceAt(ctx, addr)
	if xerr != nil {
		return xerr
	}
	if bal.Cmp(wei) >= 0 {
		return nil
	}
	return f.SetBalance(ctx, addr, wei)
}

// KeyedAccount wraps a private key. Transactions are signed locally.
func (f *Fork) KeyedAccount(ctx context.Context, key *ecdsa.PrivateKey) (*Account, xerrors.XError) {
	chainID, xerr := f.ChainID(ctx)
	if xerr != nil {
		return nil, xerr
	}
	return &Account{
		addr:   crypto.PubkeyToAddress(key.PublicKey),
		kind:   Keyed,
		signer: &keySigner{key: key, chainID: chainID},
	}, nil
}
