package config

import (
	"bytes"
	"path/filepath"
	"text/template"

	tmos "github.com/tendermint/tendermint/libs/os"
)

var configTemplate *template.Template

func init() {
	configTemplate = template.Must(template.New("configFileTemplate").Parse(defaultConfigTemplate))
}

// EnsureRoot creates the config directory under rootDir and writes the
// default config file unless one exists.
func EnsureRoot(rootDir string) (string, bool, error) {
	if err := tmos.EnsureDir(filepath.Join(rootDir, DefaultConfigDir), 0o700); err != nil {
		return "", false, err
	}
	path := filepath.Join(rootDir, DefaultConfigDir, DefaultConfigFile)
	if tmos.FileExists(path) {
		return path, false, nil
	}
	return path, true, WriteConfigFile(path, DefaultConfig())
}

// WriteConfigFile renders config into a toml file at path.
func WriteConfigFile(path string, config *Config) error {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, config); err != nil {
		return err
	}
	return tmos.WriteFile(path, buf.Bytes(), 0o644)
}

const defaultConfigTemplate = `# lendfork configuration.
# Every key can be overridden by a flag (--rpc.url) or an environment
# variable (LENDFORK_RPC_URL).

# debug | info | error, or per module: "fork:debug,*:info"
log_level = "{{ .LogLevel }}"

# Directory of the compiled contracts to deploy: a brownie, truffle or
# foundry project, or its build directory. Relative to the home directory.
artifacts_dir = "{{ .ArtifactsDir }}"

[rpc]

# Forked node endpoint (http, ws or an .ipc path).
url = "{{ .RPC.URL }}"

# Cheat code flavor of the node: anvil | hardhat | ganache
dialect = "{{ .RPC.Dialect }}"

# Bound on the wait for one transaction receipt.
timeout = "{{ .RPC.Timeout }}"

# Delay between two receipt lookups.
poll_interval = "{{ .RPC.PollInterval }}"

[deployer]

# Unlocked node account deploying the contracts (brownie's accounts[index]).
index = {{ .Deployer.Index }}

# Encrypted key file to deploy from instead. Its passphrase is read from
# LENDFORK_DEPLOYER_SECRET or prompted for.
keystore = "{{ .Deployer.Keystore }}"

[monpol]

# Priority fee of the policy deployment, in gwei.
priority_fee = "{{ .MonPol.PriorityFee }}"

# save_rate rounds after each sfrxUSD APR change, step seconds apart.
steps = {{ .MonPol.Steps }}
step = {{ .MonPol.Step }}

# Seconds slept after the first APR change.
warm_up = {{ .MonPol.WarmUp }}

[oracle]

# OracleProxy deviation bound in basis points, before and after the admin raises it.
max_deviation = {{ .Oracle.MaxDeviation }}
new_max_deviation = {{ .Oracle.NewMaxDeviation }}

# Seconds slept between the pool manipulation and the price_w poke.
settle = {{ .Oracle.Settle }}

[addresses]

frxusd = "{{ .Addresses.FrxUSD.Hex }}"
sfrxusd = "{{ .Addresses.SfrxUSD.Hex }}"
sfrxusd_owner = "{{ .Addresses.SfrxUSDOwner.Hex }}"
controller = "{{ .Addresses.Controller.Hex }}"
vault = "{{ .Addresses.Vault.Hex }}"
market_admin = "{{ .Addresses.MarketAdmin.Hex }}"
borrower = "{{ .Addresses.Borrower.Hex }}"
factory = "{{ .Addresses.Factory.Hex }}"
crvusd = "{{ .Addresses.CrvUSD.Hex }}"
reusd = "{{ .Addresses.ReUSD.Hex }}"
reusd_oracle = "{{ .Addresses.ReUSDOracle.Hex }}"
reusd_whale = "{{ .Addresses.ReUSDWhale.Hex }}"
reusd_scrvusd_pool = "{{ .Addresses.ReUSDPool.Hex }}"
scrvusd = "{{ .Addresses.ScrvUSD.Hex }}"
crvusd_whale = "{{ .Addresses.CrvUSDWhale.Hex }}"
`
