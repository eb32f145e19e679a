package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	cfg "github.com/lendfork/lendfork/cmd/config"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/fork/mocks"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/cli"
	tmlog "github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	"go.uber.org/goleak"
)

func TestInitFiles(t *testing.T) {
	logger = tmlog.NewNopLogger()
	rootConfig = cfg.DefaultConfig().SetRoot(t.TempDir())

	require.NoError(t, initFiles(NewInitFilesCmd(), nil))
	require.True(t, tmos.FileExists(rootConfig.ConfigFile()))

	// running it twice keeps the file
	require.NoError(t, initFiles(NewInitFilesCmd(), nil))
}

func TestParseConfig(t *testing.T) {
	defer viper.Reset()

	home := t.TempDir()
	viper.Set(cli.HomeFlag, home)
	viper.Set("rpc.dialect", "hardhat")
	viper.Set("rpc.timeout", "45s")
	viper.Set("deployer.keystore", "deployer.json")
	viper.Set("addresses.borrower", "0x2222222222222222222222222222222222222222")

	conf, err := ParseConfig(RootCmd)
	require.NoError(t, err)
	require.Equal(t, home, conf.RootDir)
	require.Equal(t, "hardhat", conf.RPC.Dialect)
	require.Equal(t, 45*time.Second, conf.RPC.Timeout)
	require.Equal(t, filepath.Join(home, "deployer.json"), conf.KeystorePath())
	require.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), conf.Addresses.Borrower)
	require.Equal(t, cfg.DefaultConfig().Addresses.Factory, conf.Addresses.Factory)

	viper.Set("rpc.url", "tcp://127.0.0.1:8545")
	_, err = ParseConfig(RootCmd)
	require.ErrorContains(t, err, "error in config file")
}

func TestCommandTree(t *testing.T) {
	oracle := NewOracleCmd()
	var names []string
	for _, c := range oracle.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"deploy", "down", "up", "all"}, names)
	require.NotNil(t, oracle.PersistentFlags().Lookup("oracle.max_deviation"))

	monpol := NewMonPolCmd()
	require.NotNil(t, monpol.Flags().Lookup("monpol.steps"))
	require.NotNil(t, RootCmd.PersistentFlags().Lookup("rpc.url"))
}

func TestLoadDeployer(t *testing.T) {
	node := mocks.NewNode(2)
	f := fork.NewFork(node.Dial(), fork.DefaultOptions(), tmlog.NewNopLogger())
	defer func() {
		f.Close()
		node.Stop()
	}()
	ctx := context.Background()

	conf := cfg.DefaultConfig().SetRoot(t.TempDir())
	conf.Deployer.Index = 1
	acct, err := loadDeployer(ctx, f, conf)
	require.NoError(t, err)
	require.Equal(t, node.Accounts()[1], acct.Address())
	require.Equal(t, fork.Unlocked, acct.Kind())

	stored, err := keystore.StoreKey(filepath.Join(conf.RootDir, "keys"), "correct horse", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	conf.Deployer.Keystore = stored.URL.Path

	t.Setenv("LENDFORK_DEPLOYER_SECRET", "correct horse")
	acct, err = loadDeployer(ctx, f, conf)
	require.NoError(t, err)
	require.Equal(t, stored.Address, acct.Address())
	require.Equal(t, fork.Keyed, acct.Kind())

	t.Setenv("LENDFORK_DEPLOYER_SECRET", "battery staple")
	_, err = loadDeployer(ctx, f, conf)
	require.ErrorContains(t, err, "can't decrypt")

	conf.Deployer.Keystore = filepath.Join(conf.RootDir, "missing.json")
	_, err = loadDeployer(ctx, f, conf)
	require.ErrorContains(t, err, "can't read keystore file")
}

func TestTrapSignalStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	called := false
	stop := trapSignal(tmlog.NewNopLogger(), func() { called = true })
	stop()
	require.False(t, called)
}
