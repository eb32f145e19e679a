// Package contracts binds collaborator contracts on a fork by name and
// address and encodes calls, transactions, deployments and event logs with
// go-ethereum's abi package.
package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/lendfork/lendfork/fork"
	lftypes "github.com/lendfork/lendfork/types"
	"github.com/lendfork/lendfork/types/xerrors"
)

// Contract is a handle on a deployed contract.
type Contract struct {
	name string
	addr common.Address
	abi  abi.ABI
	fork *fork.Fork
}

// At binds addr with the embedded ABI called name.
func At(f *fork.Fork, name string, addr common.Address) (*Contract, xerrors.XError) {
	parsed, xerr := ABI(name)
	if xerr != nil {
		return nil, xerr
	}
	return New(f, name, addr, parsed), nil
}

func New(f *fork.Fork, name string, addr common.Address, contractABI abi.ABI) *Contract {
	return &Contract{
		name: name,
		addr: addr,
		abi:  contractABI,
		fork: f,
	}
}

func (c *Contract) Name() string {
	return c.name
}

func (c *Contract) Address() common.Address {
	return c.addr
}

func (c *Contract) ABI() abi.ABI {
	return c.abi
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s@%s", c.name, c.addr.Hex())
}

func (c *Contract) pack(method string, args ...interface{}) ([]byte, xerrors.XError) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, xerrors.ErrUnknownMethod.Wrapf("%s.%s", c.name, method)
	}
	data, err := c.abi.Pack(method, normalize(args)...)
	if err != nil {
		return nil, xerrors.ErrABI.Wrapf("%s.%s: %v", c.name, method, err)
	}
	return data, nil
}

// Call runs a read-only call and returns the unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, xerrors.XError) {
	data, xerr := c.pack(method, args...)
	if xerr != nil {
		return nil, xerr
	}
	ret, xerr := c.fork.Call(ctx, common.Address{}, c.addr, data)
	if xerr != nil {
		return nil, xerr.Wrapf("%s.%s", c.name, method)
	}
	out, err := c.abi.Unpack(method, ret)
	if err != nil {
		return nil, xerrors.ErrABI.Wrapf("%s.%s: %v", c.name, method, err)
	}
	return out, nil
}

// CallUint calls a method with a single unsigned integer output.
func (c *Contract) CallUint(ctx context.Context, method string, args ...interface{}) (*uint256.Int, xerrors.XError) {
	out, xerr := c.CallUints(ctx, method, args...)
	if xerr != nil {
		return nil, xerr
	}
	if len(out) != 1 {
		return nil, xerrors.ErrABI.Wrapf("%s.%s: want 1 output, got %d", c.name, method, len(out))
	}
	return out[0], nil
}

// CallUints calls a method whose outputs are all unsigned integers,
// fixed size arrays of them included.
func (c *Contract) CallUints(ctx context.Context, method string, args ...interface{}) ([]*uint256.Int, xerrors.XError) {
	out, xerr := c.Call(ctx, method, args...)
	if xerr != nil {
		return nil, xerr
	}

	var ret []*uint256.Int
	for i, o := range out {
		var vals []*big.Int
		switch v := o.(type) {
		case *big.Int:
			vals = []*big.Int{v}
		case [2]*big.Int:
			vals = v[:]
		case uint8:
			vals = []*big.Int{new(big.Int).SetUint64(uint64(v))}
		case uint64:
			vals = []*big.Int{new(big.Int).SetUint64(v)}
		default:
			return nil, xerrors.ErrABI.Wrapf("%s.%s: output %d is %T", c.name, method, i, o)
		}
		for _, b := range vals {
			u, xerr := lftypes.FromBig(b)
			if xerr != nil {
				return nil, xerr.Wrapf("%s.%s: output %d", c.name, method, i)
			}
			ret = append(ret, u)
		}
	}
	return ret, nil
}

func (c *Contract) CallAddress(ctx context.Context, method string, args ...interface{}) (common.Address, xerrors.XError) {
	out, xerr := c.Call(ctx, method, args...)
	if xerr != nil {
		return common.Address{}, xerr
	}
	if len(out) != 1 {
		return common.Address{}, xerrors.ErrABI.Wrapf("%s.%s: want 1 output, got %d", c.name, method, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, xerrors.ErrABI.Wrapf("%s.%s: output is %T", c.name, method, out[0])
	}
	return addr, nil
}

// Transact sends method from `from` and waits for the receipt.
func (c *Contract) Transact(ctx context.Context, from *fork.Account, method string, args ...interface{}) (*types.Receipt, xerrors.XError) {
	return c.TransactWith(ctx, from, nil, method, args...)
}

func (c *Contract) TransactWith(ctx context.Context, from *fork.Account, opts *fork.TxOpts, method string, args ...interface{}) (*types.Receipt, xerrors.XError) {
	data, xerr := c.pack(method, args...)
	if xerr != nil {
		return nil, xerr
	}
	receipt, xerr := c.fork.Send(ctx, from, &c.addr, data, opts)
	if xerr != nil {
		return receipt, xerr.Wrapf("%s.%s", c.name, method)
	}
	return receipt, nil
}

// Events decodes every log of receipt that this contract emitted as event
// `name`. Indexed and non-indexed arguments end up in the same map.
func (c *Contract) Events(receipt *types.Receipt, name string) ([]map[string]interface{}, xerrors.XError) {
	ev, ok := c.abi.Events[name]
	if !ok {
		return nil, xerrors.ErrUnknownMethod.Wrapf("%s has no event %s", c.name, name)
	}

	bound := bind.NewBoundContract(c.addr, c.abi, nil, nil, nil)
	var events []map[string]interface{}
	for _, l := range receipt.Logs {
		if l.Address != c.addr || len(l.Topics) == 0 || l.Topics[0] != ev.ID {
			continue
		}
		fields := make(map[string]interface{})
		if err := bound.UnpackLogIntoMap(fields, name, *l); err != nil {
			return nil, xerrors.ErrABI.Wrapf("%s.%s: %v", c.name, name, err)
		}
		events = append(events, fields)
	}
	return events, nil
}

// Event returns the first `name` event of receipt.
func (c *Contract) Event(receipt *types.Receipt, name string) (map[string]interface{}, xerrors.XError) {
	events, xerr := c.Events(receipt, name)
	if xerr != nil {
		return nil, xerr
	}
	if len(events) == 0 {
		return nil, xerrors.ErrNotFoundEvent.Wrapf("%s.%s in tx %s", c.name, name, receipt.TxHash.Hex())
	}
	return events[0], nil
}

// normalize lets callers pass uint256 amounts and contract handles where
// the abi package expects *big.Int and common.Address.
func normalize(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *uint256.Int:
			out[i] = v.ToBig()
		case *Contract:
			out[i] = v.addr
		case *fork.Account:
			out[i] = v.Address()
		default:
			out[i] = arg
		}
	}
	return out
}
