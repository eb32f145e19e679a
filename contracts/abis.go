package contracts

import (
	"bytes"
	"embed"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/lendfork/lendfork/types/xerrors"
)

// Names of the embedded ABIs.
const (
	ERC20                = "ERC20"
	ERC4626              = "ERC4626"
	StakedFrxUSD         = "StakedFrxUSD"
	LlamaLendController  = "Controller"
	LlamaLendVault       = "Vault"
	LlamaLendFactory     = "OneWayLendingFactory"
	LlamaLendAMM         = "AMM"
	EMAMonetaryPolicy    = "EMAMonetaryPolicy"
	SfrxusdRateCalc      = "SfrxusdRateCalc"
	OracleProxy          = "OracleProxy"
	StableSwapPool       = "StableSwapNG"
	ReUsdFromOracleVault = "ReUsdFromOracleVault"
)

//go:embed abis/*.json
var abiFiles embed.FS

var (
	abiCache = make(map[string]abi.ABI)
	abiMtx   sync.Mutex
)

// ABI returns the parsed embedded ABI called name.
func ABI(name string) (abi.ABI, xerrors.XError) {
	abiMtx.Lock()
	defer abiMtx.Unlock()

	if parsed, ok := abiCache[name]; ok {
		return parsed, nil
	}

	bz, err := abiFiles.ReadFile(path.Join("abis", name+".json"))
	if err != nil {
		return abi.ABI{}, xerrors.ErrUnknownABI.Wrapf("%s", name)
	}
	parsed, err := abi.JSON(bytes.NewReader(bz))
	if err != nil {
		return abi.ABI{}, xerrors.ErrABI.Wrapf("%s: %v", name, err)
	}
	abiCache[name] = parsed
	return parsed, nil
}

func MustABI(name string) abi.ABI {
	parsed, xerr := ABI(name)
	if xerr != nil {
		panic(xerr)
	}
	return parsed
}

// ABINames lists the embedded ABIs.
func ABINames() []string {
	entries, err := abiFiles.ReadDir("abis")
	if err != nil {
		panic(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
