package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	cfg "github.com/lendfork/lendfork/cmd/config"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/libs"
	"github.com/lendfork/lendfork/scenario"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
)

// scenarioFunc is a scenario bound to its parameters.
type scenarioFunc func(ctx context.Context, env *scenario.Env) error

// runScenario dials the fork described by rootConfig, resolves the deployer
// and runs fn until it returns or a signal cancels it.
func runScenario(cmd *cobra.Command, fn scenarioFunc) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := trapSignal(logger, cancel)
	defer stop()

	env, err := newEnv(ctx, rootConfig, cmd)
	if err != nil {
		return err
	}
	defer env.Fork.Close()

	return fn(ctx, env)
}

func newEnv(ctx context.Context, conf *cfg.Config, cmd *cobra.Command) (*scenario.Env, error) {
	opts, xerr := conf.ForkOptions()
	if xerr != nil {
		return nil, xerr
	}
	f, xerr := fork.Dial(ctx, conf.RPC.URL, opts, logger.With("module", "fork"))
	if xerr != nil {
		return nil, xerr
	}

	deployer, err := loadDeployer(ctx, f, conf)
	if err != nil {
		f.Close()
		return nil, err
	}
	logger.Info("deployer", "address", deployer.Address(), "kind", deployer.Kind())

	return &scenario.Env{
		Fork:         f,
		Deployer:     deployer,
		Addresses:    conf.Addresses,
		ArtifactsDir: conf.ArtifactsPath(),
		Out:          cmd.OutOrStdout(),
		Logger:       logger.With("module", "scenario"),
	}, nil
}

func loadDeployer(ctx context.Context, f *fork.Fork, conf *cfg.Config) (*fork.Account, error) {
	path := conf.KeystorePath()
	if path == "" {
		return f.Account(ctx, conf.Deployer.Index)
	}

	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read keystore file: %w", err)
	}

	var s []byte
	if _secret := os.Getenv("LENDFORK_DEPLOYER_SECRET"); _secret != "" {
		s = []byte(_secret)
	} else if s, err = libs.ReadCredential(fmt.Sprintf("Passphrase for %v: ", filepath.Base(path))); err != nil {
		return nil, err
	}
	defer libs.ClearCredential(s)

	key, err := keystore.DecryptKey(bz, string(s))
	if err != nil {
		return nil, fmt.Errorf("can't decrypt %v: %w", filepath.Base(path), err)
	}
	return f.KeyedAccount(ctx, key.PrivateKey)
}

// trapSignal comes from tmos.TrapSignal. It calls cb on the first signal
// instead of exiting, so deferred reverts still reach the node.
func trapSignal(logger log.Logger, cb func()) (stop func()) {
	var signals = []os.Signal{
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
	}

	c := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(c, signals...)
	go func() {
		select {
		case sig := <-c:
			logger.Info("signal trapped", "msg", log.NewLazySprintf("captured %v, cancelling...", sig.String()))
			if cb != nil {
				cb()
			}
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}
