package commands

import (
	"fmt"
	"os"
	"strings"

	cfg "github.com/lendfork/lendfork/cmd/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/cli"
	tmflags "github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"
)

var (
	rootConfig = cfg.DefaultConfig()
	logger     = log.NewTMLogger(log.NewSyncWriter(os.Stderr))
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log_level", rootConfig.LogLevel, "log level (e.g. \"fork:debug,*:info\")")
	cmd.PersistentFlags().String("artifacts_dir", rootConfig.ArtifactsDir, "directory of the compiled contracts to deploy")
	cmd.PersistentFlags().String("rpc.url", rootConfig.RPC.URL, "endpoint of the forked node")
	cmd.PersistentFlags().String("rpc.dialect", rootConfig.RPC.Dialect, "cheat code flavor of the node: anvil | hardhat | ganache")
	cmd.PersistentFlags().Duration("rpc.timeout", rootConfig.RPC.Timeout, "bound on the wait for one transaction receipt")
	cmd.PersistentFlags().Duration("rpc.poll_interval", rootConfig.RPC.PollInterval, "delay between two receipt lookups")
	cmd.PersistentFlags().Int("deployer.index", rootConfig.Deployer.Index, "unlocked node account deploying the contracts")
	cmd.PersistentFlags().String("deployer.keystore", rootConfig.Deployer.Keystore,
		"encrypted key file to deploy from instead of an unlocked account.\n"+
			"the passphrase is read from LENDFORK_DEPLOYER_SECRET or prompted for.")
}

// ParseConfig retrieves the default environment configuration,
// sets up the lendfork root and ensures that the root exists
func ParseConfig(cmd *cobra.Command) (*cfg.Config, error) {
	conf := cfg.DefaultConfig()
	if err := viper.Unmarshal(conf, viper.DecodeHook(cfg.DecodeHook())); err != nil {
		return nil, err
	}

	home := viper.GetString(cli.HomeFlag)
	if home == "" {
		home = os.Getenv("LENDFORK_HOME")
	}
	conf.SetRoot(home)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCmd is the root command for lendfork.
var RootCmd = &cobra.Command{
	Use:   "lendfork",
	Short: "Deploy and exercise LlamaLend markets on a forked mainnet",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Name() == VersionCmd.Name() || strings.HasPrefix(cmd.Name(), "help") {
			return nil
		}

		rootConfig, err = ParseConfig(cmd)
		if err != nil {
			return err
		}

		logger, err = tmflags.ParseLogLevel(rootConfig.LogLevel, logger, cfg.DefaultLogLevel)
		if err != nil {
			return err
		}

		if viper.GetBool(cli.TraceFlag) {
			logger = log.NewTracingLogger(logger)
		}

		logger = logger.With("module", "main")
		return nil
	},
}
