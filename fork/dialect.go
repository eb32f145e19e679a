package fork

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lendfork/lendfork/types/xerrors"
)

// Dialect selects the node specific cheat codes.
// The evm_* time and snapshot methods are shared by every supported node.
type Dialect string

const (
	DialectAnvil   Dialect = "anvil"
	DialectHardhat Dialect = "hardhat"
	DialectGanache Dialect = "ganache"
)

func ParseDialect(s string) (Dialect, xerrors.XError) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectAnvil, DialectHardhat, DialectGanache:
		return d, nil
	case "":
		return DialectAnvil, nil
	default:
		return "", xerrors.ErrUnknownDialect.Wrapf("%q", s)
	}
}

func (d Dialect) method(name string) string {
	if d == DialectGanache && name == "setBalance" {
		return "evm_setAccountBalance"
	}
	return string(d) + "_" + name
}

// ganache has no impersonation call. An arbitrary address is added to the
// personal namespace with an empty passphrase and unlocked instead.
func (f *Fork) impersonate(ctx context.Context, addr common.Address) error {
	if f.opts.Dialect != DialectGanache {
		return f.rpc.CallContext(ctx, nil, f.opts.Dialect.method("impersonateAccount"), addr)
	}
	var added bool
	if err := f.rpc.CallContext(ctx, &added, "evm_addAccount", addr, ""); err != nil {
		return err
	}
	var unlocked bool
	return f.rpc.CallContext(ctx, &unlocked, "personal_unlockAccount", addr, "", 0)
}

func (f *Fork) stopImpersonating(ctx context.Context, addr common.Address) error {
	if f.opts.Dialect != DialectGanache {
		return f.rpc.CallContext(ctx, nil, f.opts.Dialect.method("stopImpersonatingAccount"), addr)
	}
	var locked bool
	return f.rpc.CallContext(ctx, &locked, "personal_lockAccount", addr)
}

func (d Dialect) String() string {
	return string(d)
}
