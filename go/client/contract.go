// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package client

import (
	"fmt"

	"github.com/Fantom-foundation/evm-sandbox/go/abi"
	"github.com/Fantom-foundation/evm-sandbox/go/dispatch"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
)

// Contract binds a contract interface to a deployed contract.
type Contract struct {
	client  *Client
	iface   *abi.Interface
	address sandbox.Address
}

// InvokeResult summarizes the effects of a successful function invocation.
type InvokeResult struct {
	Values  []any // decoded function outputs
	GasUsed sandbox.Gas
	Logs    []sandbox.Log
}

// DeployContract deploys the bytecode included in the given interface,
// passing the ABI encoded constructor arguments, and binds the interface
// to the new contract.
func (c *Client) DeployContract(deployer sandbox.Address, iface *abi.Interface, value sandbox.Value, args ...any) (*Contract, sandbox.Gas, error) {
	if params, declared := iface.ConstructorParams(); declared && len(params) != len(args) {
		return nil, 0, fmt.Errorf("wrong number of constructor arguments, wanted %d, got %d", len(params), len(args))
	}
	data, err := iface.DeployData(args...)
	if err != nil {
		return nil, 0, err
	}
	address, gas, err := c.Deploy(deployer, sandbox.Code(data), value)
	if err != nil {
		return nil, 0, err
	}
	return c.At(iface, address), gas, nil
}

// At binds the given interface to the contract at the given address.
func (c *Client) At(iface *abi.Interface, address sandbox.Address) *Contract {
	return &Contract{
		client:  c,
		iface:   iface,
		address: address,
	}
}

func (c *Contract) Address() sandbox.Address {
	return c.address
}

func (c *Contract) Interface() *abi.Interface {
	return c.iface
}

// Invoke calls the named function with the given arguments. Functions
// declared pure or view are run as read-only calls, all others as
// transactions. The function may be named by its signature to select one
// of multiple overloads.
func (c *Contract) Invoke(caller sandbox.Address, function string, value sandbox.Value, args ...any) (InvokeResult, error) {
	fn, err := c.iface.Function(function)
	if err != nil {
		return InvokeResult{}, err
	}
	data, err := fn.EncodeCall(args...)
	if err != nil {
		return InvokeResult{}, err
	}

	var res dispatch.Result
	if fn.IsStateMutating {
		res, err = c.client.Transact(caller, c.address, data, value)
	} else {
		if !value.IsZero() {
			return InvokeResult{}, fmt.Errorf("cannot send value to read-only function %v", fn)
		}
		res, err = c.client.Call(caller, c.address, data)
	}
	if err != nil {
		return InvokeResult{}, fmt.Errorf("%v failed: %w", fn, err)
	}

	values, err := fn.DecodeOutput(res.Output)
	if err != nil {
		return InvokeResult{}, err
	}
	return InvokeResult{
		Values:  values,
		GasUsed: res.GasUsed,
		Logs:    res.Logs,
	}, nil
}

// DecodeLogs decodes the logs emitted by this contract. Logs of other
// contracts and logs not matching a declared event are skipped.
func (c *Contract) DecodeLogs(logs []sandbox.Log) []abi.DecodedLog {
	res := []abi.DecodedLog{}
	for _, log := range logs {
		if log.Address != c.address {
			continue
		}
		if decoded, err := c.iface.DecodeLog(log); err == nil {
			res = append(res, decoded)
		}
	}
	return res
}
