package fork

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lendfork/lendfork/types/xerrors"
)

// Send submits a transaction from `from` and waits for it to be mined.
// A nil `to` creates a contract. Failed receipts are returned as ErrReverted.
func (f *Fork) Send(ctx context.Context, from *Account, to *common.Address, data []byte, opts *TxOpts) (*types.Receipt, xerrors.XError) {
	if from == nil || from.signer == nil {
		return nil, xerrors.ErrNotFoundAccount.Wrapf("no sender")
	}

	hash, err := from.signer.send(ctx, f, from.addr, to, data, opts)
	if err != nil {
		return nil, classify(err)
	}

	receipt, xerr := f.WaitReceipt(ctx, hash)
	if xerr != nil {
		return nil, xerr
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, xerrors.ErrReverted.Wrapf("tx %s from %s failed in block %v", hash.Hex(), from.addr.Hex(), receipt.BlockNumber)
	}

	f.logger.Debug("mined", "tx", hash, "from", from.addr, "block", receipt.BlockNumber, "gas", receipt.GasUsed)
	return receipt, nil
}

// WaitReceipt polls until the transaction is mined or TxTimeout passes.
func (f *Fork) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, xerrors.XError) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.TxTimeout)
	defer cancel()

	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := f.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, xerrors.ErrTimeout.Wrapf("waiting for tx %s", hash.Hex())
			}
			return nil, xerrors.ErrRPC.Wrap(err)
		}

		select {
		case <-ctx.Done():
			return nil, xerrors.ErrTimeout.Wrapf("waiting for tx %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

// classify maps a node error to ErrReverted when the node reports an EVM
// revert, decoding the Error(string) payload when one is attached.
func classify(err error) xerrors.XError {
	if reason, ok := RevertReason(err); ok {
		if reason != "" {
			return xerrors.ErrReverted.Wrapf("%s", reason)
		}
		return xerrors.ErrReverted.Wrap(err)
	}
	return xerrors.ErrRPC.Wrap(err)
}

// RevertReason reports whether err is an EVM revert and the decoded reason
// if the node attached revert data.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if bz, derr := hexutil.Decode(s); derr == nil && len(bz) > 0 {
				if reason, uerr := abi.UnpackRevert(bz); uerr == nil {
					return reason, true
				}
				return "", true
			}
		}
	}
	return "", strings.Contains(strings.ToLower(err.Error()), "revert")
}
