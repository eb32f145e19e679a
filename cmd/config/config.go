package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/libs"
	"github.com/lendfork/lendfork/scenario"
	lftypes "github.com/lendfork/lendfork/types"
	"github.com/lendfork/lendfork/types/xerrors"
	"github.com/mitchellh/mapstructure"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.toml"
	DefaultLogLevel   = "info"
)

type Config struct {
	// RootDir is the home directory, set by --home.
	RootDir  string `mapstructure:"home"`
	LogLevel string `mapstructure:"log_level"`

	// ArtifactsDir is the project (or build) directory holding the compiled
	// contracts to deploy. Relative paths are resolved against RootDir.
	ArtifactsDir string `mapstructure:"artifacts_dir"`

	RPC       RPCConfig            `mapstructure:"rpc"`
	Deployer  DeployerConfig       `mapstructure:"deployer"`
	MonPol    MonPolConfig         `mapstructure:"monpol"`
	Oracle    OracleConfig         `mapstructure:"oracle"`
	Addresses scenario.AddressBook `mapstructure:"addresses"`
}

type RPCConfig struct {
	URL     string `mapstructure:"url"`
	Dialect string `mapstructure:"dialect"`
	// Timeout bounds the wait for one transaction receipt.
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type DeployerConfig struct {
	// Index selects the node's unlocked account used when Keystore is empty.
	Index    int    `mapstructure:"index"`
	Keystore string `mapstructure:"keystore"`
}

type MonPolConfig struct {
	// PriorityFee in gwei.
	PriorityFee string `mapstructure:"priority_fee"`
	Steps       int    `mapstructure:"steps"`
	Step        uint64 `mapstructure:"step"`
	WarmUp      uint64 `mapstructure:"warm_up"`
}

type OracleConfig struct {
	MaxDeviation    uint64 `mapstructure:"max_deviation"`
	NewMaxDeviation uint64 `mapstructure:"new_max_deviation"`
	Settle          uint64 `mapstructure:"settle"`
}

func DefaultConfig() *Config {
	monpol := scenario.DefaultMonPolParams()
	oracle := scenario.DefaultOracleParams()
	return &Config{
		LogLevel:     DefaultLogLevel,
		ArtifactsDir: "build",
		RPC: RPCConfig{
			URL:          "http://127.0.0.1:8545",
			Dialect:      fork.DialectAnvil.String(),
			Timeout:      fork.DefaultOptions().TxTimeout,
			PollInterval: fork.DefaultOptions().PollInterval,
		},
		MonPol: MonPolConfig{
			PriorityFee: "0.04",
			Steps:       monpol.Steps,
			Step:        monpol.Step,
			WarmUp:      monpol.WarmUp,
		},
		Oracle: OracleConfig{
			MaxDeviation:    oracle.MaxDeviation,
			NewMaxDeviation: oracle.NewMaxDeviation,
			Settle:          oracle.Settle,
		},
		Addresses: scenario.DefaultAddressBook(),
	}
}

func (c *Config) SetRoot(root string) *Config {
	c.RootDir = root
	return c
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, DefaultConfigDir, DefaultConfigFile)
}

func (c *Config) ArtifactsPath() string {
	return rootify(c.ArtifactsDir, c.RootDir)
}

func (c *Config) KeystorePath() string {
	if c.Deployer.Keystore == "" {
		return ""
	}
	return rootify(c.Deployer.Keystore, c.RootDir)
}

// ForkOptions maps the rpc section onto fork.Options.
func (c *Config) ForkOptions() (fork.Options, xerrors.XError) {
	dialect, xerr := fork.ParseDialect(c.RPC.Dialect)
	if xerr != nil {
		return fork.Options{}, xerr
	}
	opts := fork.DefaultOptions()
	opts.Dialect = dialect
	opts.TxTimeout = c.RPC.Timeout
	opts.PollInterval = c.RPC.PollInterval
	return opts, nil
}

func (c *Config) MonPolParams() (scenario.MonPolParams, xerrors.XError) {
	params := scenario.DefaultMonPolParams()
	if c.MonPol.PriorityFee != "" {
		tip, xerr := lftypes.ParseGwei(c.MonPol.PriorityFee)
		if xerr != nil {
			return params, xerrors.ErrConfig.Wrap(xerr)
		}
		params.PriorityFee = tip
	}
	params.Steps = c.MonPol.Steps
	params.Step = c.MonPol.Step
	params.WarmUp = c.MonPol.WarmUp
	return params, params.ValidateBasic()
}

func (c *Config) OracleParams() (scenario.OracleParams, xerrors.XError) {
	params := scenario.DefaultOracleParams()
	params.MaxDeviation = c.Oracle.MaxDeviation
	params.NewMaxDeviation = c.Oracle.NewMaxDeviation
	params.Settle = c.Oracle.Settle
	return params, params.ValidateBasic()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (c *Config) ValidateBasic() xerrors.XError {
	if !strings.HasSuffix(c.RPC.URL, ".ipc") {
		u, err := url.Parse(c.RPC.URL)
		if err != nil {
			return xerrors.ErrConfig.Wrapf("rpc.url %q: %v", c.RPC.URL, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "ws", "wss":
		default:
			return xerrors.ErrConfig.Wrapf("rpc.url %q: unsupported scheme", c.RPC.URL)
		}
	}
	if _, xerr := fork.ParseDialect(c.RPC.Dialect); xerr != nil {
		return xerr
	}
	if c.RPC.Timeout <= 0 {
		return xerrors.ErrConfig.Wrapf("rpc.timeout must be positive")
	}
	if c.RPC.PollInterval <= 0 || c.RPC.PollInterval > c.RPC.Timeout {
		return xerrors.ErrConfig.Wrapf("rpc.poll_interval must be in (0, rpc.timeout]")
	}
	if c.Deployer.Index < 0 {
		return xerrors.ErrConfig.Wrapf("deployer.index can't be negative")
	}
	if _, xerr := c.MonPolParams(); xerr != nil {
		return xerr
	}
	if _, xerr := c.OracleParams(); xerr != nil {
		return xerr
	}
	return c.Addresses.ValidateBasic()
}

// DecodeHook lets viper decode addresses from their hex form on top of its
// default duration and slice hooks.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func rootify(path, root string) string {
	path = libs.ExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
