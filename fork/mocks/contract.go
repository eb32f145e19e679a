package mocks

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is one invocation of a scripted method.
type Call struct {
	From   common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	Time   uint64

	contract *Contract
	output   []byte
	logs     []*types.Log
}

// Emit appends an event log to the transaction receipt.
// Arguments are given in ABI order, indexed ones included.
func (c *Call) Emit(event string, args ...interface{}) error {
	l, err := EventLog(c.contract.ABI, c.contract.Address, event, args...)
	if err != nil {
		return err
	}
	c.logs = append(c.logs, l)
	return nil
}

// Handler answers a method call with its outputs in ABI order.
type Handler func(call *Call) ([]interface{}, error)

type Contract struct {
	Address common.Address
	ABI     abi.ABI

	handlers map[string]Handler
	calls    map[string]int
	node     *Node
	mtx      sync.Mutex
}

func (c *Contract) On(method string, h Handler) *Contract {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.handlers[method] = h
	return c
}

// Returns answers method with fixed outputs.
func (c *Contract) Returns(method string, outputs ...interface{}) *Contract {
	return c.On(method, func(*Call) ([]interface{}, error) {
		return outputs, nil
	})
}

// Calls returns how many times method has been dispatched.
func (c *Contract) Calls(method string) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.calls[method]
}

func (c *Contract) dispatch(from common.Address, input []byte, value *big.Int) (*Call, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("no method selector for %s", c.Address.Hex())
	}
	method, err := c.ABI.MethodById(input[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}

	c.mtx.Lock()
	h, ok := c.handlers[method.Name]
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[method.Name]++
	c.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: no handler for %s", c.Address.Hex(), method.Sig)
	}

	call := &Call{
		From:     from,
		Method:   method.Name,
		Args:     args,
		Value:    value,
		Time:     c.node.Now(),
		contract: c,
	}
	outputs, err := h(call)
	if err != nil {
		return nil, err
	}
	call.output, err = method.Outputs.Pack(outputs...)
	if err != nil {
		return nil, fmt.Errorf("%s: packing outputs: %w", method.Sig, err)
	}
	return call, nil
}

// EventLog builds the log `event` would produce with the given arguments.
func EventLog(contractABI abi.ABI, addr common.Address, event string, args ...interface{}) (*types.Log, error) {
	ev, ok := contractABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("no event %s", event)
	}
	if len(args) != len(ev.Inputs) {
		return nil, fmt.Errorf("event %s: want %d arguments, got %d", event, len(ev.Inputs), len(args))
	}

	topics := []common.Hash{ev.ID}
	var data []interface{}
	for i, input := range ev.Inputs {
		if !input.Indexed {
			data = append(data, args[i])
			continue
		}
		hashes, err := abi.MakeTopics([]interface{}{args[i]})
		if err != nil {
			return nil, err
		}
		topics = append(topics, hashes[0][0])
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: addr,
		Topics:  topics,
		Data:    packed,
	}, nil
}
