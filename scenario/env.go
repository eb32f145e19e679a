// Package scenario runs the deployment and simulation sequences against a
// forked chain and prints what the collaborator contracts report.
package scenario

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lendfork/lendfork/contracts"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/types/xerrors"
	tmlog "github.com/tendermint/tendermint/libs/log"
)

// Env is what every scenario runs with.
type Env struct {
	Fork *fork.Fork
	// Deployer deploys contracts and sends the unprivileged transactions,
	// brownie's accounts[0].
	Deployer     *fork.Account
	Addresses    AddressBook
	ArtifactsDir string

	// Out receives the report; logs go to Logger.
	Out    io.Writer
	Logger tmlog.Logger
}

func (env *Env) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(env.Out, format+"\n", args...)
}

func (env *Env) println(line string) {
	_, _ = fmt.Fprintln(env.Out, line)
}

func (env *Env) at(name string, addr common.Address) (*contracts.Contract, xerrors.XError) {
	return contracts.At(env.Fork, name, addr)
}

// deploy loads the artifact called name and deploys it from the deployer.
func (env *Env) deploy(ctx context.Context, name string, opts *fork.TxOpts, args ...interface{}) (*contracts.Contract, xerrors.XError) {
	art, xerr := contracts.LoadArtifact(env.ArtifactsDir, name)
	if xerr != nil {
		return nil, xerr
	}
	c, receipt, xerr := contracts.Deploy(ctx, env.Fork, art, env.Deployer, opts, args...)
	if xerr != nil {
		return nil, xerr
	}
	env.Logger.Info("deployed", "contract", art.Name, "address", c.Address(), "tx", receipt.TxHash, "gas", receipt.GasUsed)
	return c, nil
}

// RunIsolated runs fn from a snapshot of the fork and reverts to it
// afterwards, whether fn failed or not.
func RunIsolated(ctx context.Context, env *Env, fn func(context.Context, *Env) xerrors.XError) (xerr xerrors.XError) {
	id, xerr := env.Fork.Snapshot(ctx)
	if xerr != nil {
		return xerr
	}
	defer func() {
		// the caller's context may be gone already
		if rerr := env.Fork.Revert(context.WithoutCancel(ctx), id); rerr != nil {
			env.Logger.Error("revert failed", "snapshot", id, "err", rerr)
			if xerr == nil {
				xerr = rerr
			}
		}
	}()
	return fn(ctx, env)
}
