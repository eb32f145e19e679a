package contracts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/json-iterator/go"
	"github.com/lendfork/lendfork/fork"
	"github.com/lendfork/lendfork/libs/jsonx"
	"github.com/lendfork/lendfork/types/xerrors"
)

// Artifact is the ABI and creation code of a locally compiled contract.
type Artifact struct {
	Name     string
	Path     string
	ABI      abi.ABI
	Bytecode []byte
}

// artifactLayouts are the build file locations of brownie, truffle,
// hardhat and foundry projects, relative to the project (or build) dir.
var artifactLayouts = []string{
	"%s.json",
	"build/contracts/%s.json",
	"contracts/%s.json",
	"out/%s.sol/%s.json",
	"out/%s.vy/%s.json",
	"%s.sol/%s.json",
	"%s.vy/%s.json",
}

type rawArtifact struct {
	ContractName string              `json:"contractName"`
	ABI          jsoniter.RawMessage `json:"abi"`
	Bytecode     jsoniter.RawMessage `json:"bytecode"`
}

type foundryBytecode struct {
	Object string `json:"object"`
}

// LoadArtifact finds and parses the build file of contract name under dir.
func LoadArtifact(dir, name string) (*Artifact, xerrors.XError) {
	for _, layout := range artifactLayouts {
		p := filepath.Join(dir, strings.ReplaceAll(layout, "%s", name))
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return ReadArtifact(p, name)
	}
	return nil, xerrors.ErrArtifact.Wrapf("no build file for %s under %s", name, dir)
}

// ReadArtifact parses one build file. Both the brownie/truffle layout
// ("bytecode": "0x...") and the foundry one ("bytecode": {"object": "0x..."})
// are accepted.
func ReadArtifact(path, name string) (*Artifact, xerrors.XError) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.ErrArtifact.Wrap(err)
	}

	raw := rawArtifact{}
	if err := jsonx.Unmarshal(bz, &raw); err != nil {
		return nil, xerrors.ErrArtifact.Wrapf("%s: %v", path, err)
	}
	if len(raw.ABI) == 0 {
		return nil, xerrors.ErrArtifact.Wrapf("%s: no abi", path)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, xerrors.ErrABI.Wrapf("%s: %v", path, err)
	}

	code, xerr := decodeBytecode(raw.Bytecode)
	if xerr != nil {
		return nil, xerr.Wrapf("%s", path)
	}

	if raw.ContractName != "" {
		name = raw.ContractName
	}
	return &Artifact{
		Name:     name,
		Path:     path,
		ABI:      parsed,
		Bytecode: code,
	}, nil
}

func decodeBytecode(raw jsoniter.RawMessage) ([]byte, xerrors.XError) {
	if len(raw) == 0 {
		return nil, xerrors.ErrEmptyBytecode
	}
	var hex string
	if err := jsonx.Unmarshal(raw, &hex); err != nil {
		obj := foundryBytecode{}
		if err := jsonx.Unmarshal(raw, &obj); err != nil {
			return nil, xerrors.ErrArtifact.Wrapf("unrecognized bytecode field")
		}
		hex = obj.Object
	}

	hex = strings.TrimPrefix(strings.TrimSpace(hex), "0x")
	if hex == "" {
		return nil, xerrors.ErrEmptyBytecode
	}
	if strings.Contains(hex, "__") {
		return nil, xerrors.ErrArtifact.Wrapf("bytecode has unlinked libraries")
	}
	code, err := hexutil.Decode("0x" + hex)
	if err != nil {
		return nil, xerrors.ErrArtifact.Wrap(err)
	}
	return code, nil
}

// Deploy creates the artifact's contract from `from`, packing args for its
// constructor, and binds the new address.
func Deploy(ctx context.Context, f *fork.Fork, art *Artifact, from *fork.Account, opts *fork.TxOpts, args ...interface{}) (*Contract, *types.Receipt, xerrors.XError) {
	input, err := art.ABI.Pack("", normalize(args)...)
	if err != nil {
		return nil, nil, xerrors.ErrABI.Wrapf("%s constructor: %v", art.Name, err)
	}
	code := append(append([]byte{}, art.Bytecode...), input...)

	receipt, xerr := f.Send(ctx, from, nil, code, opts)
	if xerr != nil {
		return nil, receipt, xerr.Wrapf("deploying %s", art.Name)
	}
	return New(f, art.Name, receipt.ContractAddress, art.ABI), receipt, nil
}
