// Package mocks serves a scripted development node over an in-process
// go-ethereum rpc server. Contracts are answered by handlers registered per
// address and method; cheat codes are journaled so tests can assert on them.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrFailedReceipt makes a transaction handler mine with status 0
// instead of being rejected at submission.
var ErrFailedReceipt = errors.New("mined with failed status")

const (
	GenesisTime   = uint64(1_700_000_000)
	BlockGasLimit = uint64(30_000_000)
)

var (
	BaseFee    = big.NewInt(1_000_000_000)
	DefaultTip = big.NewInt(1_000_000)
)

type Node struct {
	server *rpc.Server

	chainID  *big.Int
	accounts []common.Address

	block     uint64
	timeShift uint64
	snapshots map[uint64]uint64

	nonces       map[common.Address]uint64
	balances     map[common.Address]*big.Int
	impersonated map[common.Address]bool
	contracts    map[common.Address]*Contract
	receipts     map[common.Hash]*types.Receipt

	onDeploy []func(addr common.Address, from common.Address, code []byte) error
	sent     []CallArgs

	journal []string
	mtx     sync.Mutex
}

func NewNode(accountCnt int) *Node {
	n := &Node{
		server:       rpc.NewServer(),
		chainID:      big.NewInt(31337),
		snapshots:    make(map[uint64]uint64),
		nonces:       make(map[common.Address]uint64),
		balances:     make(map[common.Address]*big.Int),
		impersonated: make(map[common.Address]bool),
		contracts:    make(map[common.Address]*Contract),
		receipts:     make(map[common.Hash]*types.Receipt),
	}
	for i := 0; i < accountCnt; i++ {
		addr := common.BigToAddress(big.NewInt(int64(0xacc0 + i)))
		n.accounts = append(n.accounts, addr)
		n.balances[addr] = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1_000_000_000_000_000_000))
	}

	mustRegister(n.server, "eth", &ethService{n})
	mustRegister(n.server, "evm", &evmService{n})
	mustRegister(n.server, "anvil", &cheatService{n, "anvil"})
	mustRegister(n.server, "hardhat", &cheatService{n, "hardhat"})
	mustRegister(n.server, "personal", &personalService{n})
	return n
}

func mustRegister(srv *rpc.Server, name string, svc interface{}) {
	if err := srv.RegisterName(name, svc); err != nil {
		panic(err)
	}
}

// Dial returns a client bound to the in-process server.
func (n *Node) Dial() *rpc.Client {
	return rpc.DialInProc(n.server)
}

func (n *Node) Stop() {
	n.server.Stop()
}

func (n *Node) Accounts() []common.Address {
	return append([]common.Address(nil), n.accounts...)
}

// Now is the node's current timestamp.
func (n *Node) Now() uint64 {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return GenesisTime + n.timeShift
}

// Journal returns the cheat code methods called so far, in order.
func (n *Node) Journal() []string {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return append([]string(nil), n.journal...)
}

// Sent returns the accepted eth_sendTransaction arguments, in order.
func (n *Node) Sent() []CallArgs {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return append([]CallArgs(nil), n.sent...)
}

func (n *Node) Impersonated(addr common.Address) bool {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.impersonated[addr]
}

func (n *Node) Balance(addr common.Address) *big.Int {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if b, ok := n.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Register installs a scripted contract at addr.
func (n *Node) Register(addr common.Address, contractABI abi.ABI) *Contract {
	c := &Contract{
		Address:  addr,
		ABI:      contractABI,
		handlers: make(map[string]Handler),
		node:     n,
	}
	n.mtx.Lock()
	n.contracts[addr] = c
	n.mtx.Unlock()
	return c
}

// OnDeploy is called for every creation transaction with the would-be
// contract address, typically to Register a scripted contract there.
func (n *Node) OnDeploy(fn func(addr common.Address, from common.Address, code []byte) error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.onDeploy = append(n.onDeploy, fn)
}

func (n *Node) record(method string) {
	n.journal = append(n.journal, method)
}

func (n *Node) contract(addr common.Address) (*Contract, bool) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	c, ok := n.contracts[addr]
	return c, ok
}

func (n *Node) canSend(addr common.Address) bool {
	if n.impersonated[addr] {
		return true
	}
	for _, a := range n.accounts {
		if a == addr {
			return true
		}
	}
	return false
}

func (n *Node) sendTransaction(args CallArgs) (common.Hash, error) {
	n.mtx.Lock()
	if !n.canSend(args.From) {
		n.mtx.Unlock()
		return common.Hash{}, fmt.Errorf("no signer available for %s", args.From.Hex())
	}
	nonce := n.nonces[args.From]
	n.mtx.Unlock()

	hash := crypto.Keccak256Hash(args.From.Bytes(), new(big.Int).SetUint64(nonce).Bytes())
	return n.apply(args, nonce, hash)
}

// sendRawTransaction recovers the sender of a locally signed transaction
// and mines it like eth_sendTransaction does.
func (n *Node) sendRawTransaction(raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return common.Hash{}, err
	}

	n.mtx.Lock()
	nonce := n.nonces[from]
	n.mtx.Unlock()
	if tx.Nonce() != nonce {
		return common.Hash{}, fmt.Errorf("nonce %d of %s, expected %d", tx.Nonce(), from.Hex(), nonce)
	}

	input := hexutil.Bytes(tx.Data())
	args := CallArgs{
		From:                 from,
		To:                   tx.To(),
		Input:                &input,
		Value:                (*hexutil.Big)(tx.Value()),
		MaxPriorityFeePerGas: (*hexutil.Big)(tx.GasTipCap()),
	}
	return n.apply(args, nonce, tx.Hash())
}

// apply mines args in a block of its own.
func (n *Node) apply(args CallArgs, nonce uint64, hash common.Hash) (common.Hash, error) {
	n.mtx.Lock()
	n.sent = append(n.sent, args)
	n.nonces[args.From] = nonce + 1
	n.block++
	block := n.block
	hooks := append([]func(common.Address, common.Address, []byte) error(nil), n.onDeploy...)
	n.mtx.Unlock()

	receipt := &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21_000,
		GasUsed:           21_000,
		TxHash:            hash,
		BlockNumber:       new(big.Int).SetUint64(block),
		BlockHash:         crypto.Keccak256Hash(new(big.Int).SetUint64(block).Bytes()),
		Logs:              []*types.Log{},
	}

	if args.To == nil {
		addr := crypto.CreateAddress(args.From, nonce)
		for _, hook := range hooks {
			if err := hook(addr, args.From, args.input()); err != nil {
				return common.Hash{}, revertError{reason: err.Error()}
			}
		}
		receipt.ContractAddress = addr
	} else {
		c, ok := n.contract(*args.To)
		if !ok {
			// plain value transfer or call into unscripted code
			n.store(receipt)
			return hash, nil
		}
		call, err := c.dispatch(args.From, args.input(), args.Value.ToInt())
		switch {
		case errors.Is(err, ErrFailedReceipt):
			receipt.Status = types.ReceiptStatusFailed
		case err != nil:
			return common.Hash{}, revertError{reason: err.Error()}
		default:
			// clients reject a receipt whose logs are null
			for i, l := range call.logs {
				l.TxHash = hash
				l.BlockNumber = block
				l.BlockHash = receipt.BlockHash
				l.Index = uint(i)
				receipt.Logs = append(receipt.Logs, l)
			}
		}
	}

	n.store(receipt)
	return hash, nil
}

func (n *Node) store(receipt *types.Receipt) {
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
	n.mtx.Lock()
	n.receipts[receipt.TxHash] = receipt
	n.mtx.Unlock()
}

type CallArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
	Value                *hexutil.Big    `json:"value"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
}

func (a CallArgs) input() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

// revertError is serialized like a node's execution revert: code 3 with
// the Error(string) payload as data.
type revertError struct {
	reason string
}

func (e revertError) Error() string {
	return "execution reverted: " + e.reason
}

func (e revertError) ErrorCode() int {
	return 3
}

func (e revertError) ErrorData() interface{} {
	strType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strType}}.Pack(e.reason)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

type ethService struct {
	n *Node
}

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(s.n.chainID)
}

func (s *ethService) Accounts() []common.Address {
	return s.n.Accounts()
}

func (s *ethService) GetBalance(addr common.Address, block string) *hexutil.Big {
	return (*hexutil.Big)(s.n.Balance(addr))
}

func (s *ethService) Call(ctx context.Context, args CallArgs, block string) (hexutil.Bytes, error) {
	c, ok := s.n.contract(deref(args.To))
	if !ok {
		return hexutil.Bytes{}, nil
	}
	call, err := c.dispatch(args.From, args.input(), nil)
	if err != nil {
		return nil, revertError{reason: err.Error()}
	}
	return call.output, nil
}

func (s *ethService) SendTransaction(args CallArgs) (common.Hash, error) {
	return s.n.sendTransaction(args)
}

func (s *ethService) SendRawTransaction(raw hexutil.Bytes) (common.Hash, error) {
	return s.n.sendRawTransaction(raw)
}

func (s *ethService) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	return hexutil.Uint64(s.n.nonces[addr])
}

// GetCode reports a stub for scripted contracts so gas estimation accepts them.
func (s *ethService) GetCode(addr common.Address, block string) hexutil.Bytes {
	if _, ok := s.n.contract(addr); ok {
		return hexutil.Bytes{0x60, 0x80}
	}
	return hexutil.Bytes{}
}

func (s *ethService) EstimateGas(args CallArgs) hexutil.Uint64 {
	return hexutil.Uint64(BlockGasLimit / 10)
}

func (s *ethService) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).Add(BaseFee, DefaultTip))
}

func (s *ethService) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).Set(DefaultTip))
}

// GetBlockByNumber returns the header of the latest block whatever number
// is asked for.
func (s *ethService) GetBlockByNumber(number string, fullTx bool) *types.Header {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	return &types.Header{
		Difficulty: new(big.Int),
		Number:     new(big.Int).SetUint64(s.n.block),
		GasLimit:   BlockGasLimit,
		Time:       GenesisTime + s.n.timeShift,
		BaseFee:    new(big.Int).Set(BaseFee),
	}
}

func (s *ethService) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	return s.n.receipts[hash], nil
}

type evmService struct {
	n *Node
}

func (s *evmService) IncreaseTime(seconds uint64) uint64 {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_increaseTime")
	s.n.timeShift += seconds
	return s.n.timeShift
}

func (s *evmService) Mine() string {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_mine")
	s.n.block++
	return "0x0"
}

func (s *evmService) Snapshot() *hexutil.Big {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_snapshot")
	id := uint64(len(s.n.snapshots) + 1)
	s.n.snapshots[id] = s.n.timeShift
	return (*hexutil.Big)(new(big.Int).SetUint64(id))
}

func (s *evmService) Revert(id hexutil.Big) bool {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_revert")
	shift, ok := s.n.snapshots[id.ToInt().Uint64()]
	if !ok {
		return false
	}
	s.n.timeShift = shift
	s.n.impersonated = make(map[common.Address]bool)
	delete(s.n.snapshots, id.ToInt().Uint64())
	return true
}

// AddAccount and SetAccountBalance are ganache's spelling of the cheat codes.
func (s *evmService) AddAccount(addr common.Address, passphrase string) bool {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_addAccount")
	return true
}

func (s *evmService) SetAccountBalance(addr common.Address, bal hexutil.Big) bool {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("evm_setAccountBalance")
	s.n.balances[addr] = new(big.Int).Set(bal.ToInt())
	return true
}

type personalService struct {
	n *Node
}

func (s *personalService) UnlockAccount(addr common.Address, passphrase string, duration uint64) bool {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("personal_unlockAccount")
	s.n.impersonated[addr] = true
	return true
}

func (s *personalService) LockAccount(addr common.Address) bool {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record("personal_lockAccount")
	delete(s.n.impersonated, addr)
	return true
}

type cheatService struct {
	n  *Node
	ns string
}

func (s *cheatService) ImpersonateAccount(addr common.Address) error {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record(s.ns + "_impersonateAccount")
	s.n.impersonated[addr] = true
	return nil
}

func (s *cheatService) StopImpersonatingAccount(addr common.Address) error {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record(s.ns + "_stopImpersonatingAccount")
	delete(s.n.impersonated, addr)
	return nil
}

func (s *cheatService) SetBalance(addr common.Address, bal hexutil.Big) error {
	s.n.mtx.Lock()
	defer s.n.mtx.Unlock()
	s.n.record(s.ns + "_setBalance")
	s.n.balances[addr] = new(big.Int).Set(bal.ToInt())
	return nil
}

func deref(addr *common.Address) common.Address {
	if addr == nil {
		return common.Address{}
	}
	return *addr
}
