// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package abi

import (
	"fmt"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EncodeCall produces the input data of a call to the given function: the
// selector followed by the ABI encoding of the arguments.
func (i *Interface) EncodeCall(name string, args ...any) (sandbox.Data, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}
	return fn.EncodeCall(args...)
}

// EncodeCall produces the input data of a call to this function.
func (f *Function) EncodeCall(args ...any) (sandbox.Data, error) {
	packed, err := f.inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments of %s: %w", f.Signature, err)
	}
	res := make(sandbox.Data, 0, len(f.Selector)+len(packed))
	res = append(res, f.Selector[:]...)
	return append(res, packed...), nil
}

// DecodeOutput decodes the data returned by a call to this function.
func (f *Function) DecodeOutput(data []byte) ([]any, error) {
	if len(f.outputs) == 0 {
		return []any{}, nil
	}
	res, err := f.outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result of %s: %w", f.Signature, err)
	}
	return res, nil
}

// DecodeOutput decodes the data returned by a call to the given function.
func (i *Interface) DecodeOutput(name string, data []byte) ([]any, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}
	return fn.DecodeOutput(data)
}

// EncodeConstructor produces the ABI encoding of the constructor arguments.
// Interfaces without a constructor accept no arguments.
func (i *Interface) EncodeConstructor(args ...any) (sandbox.Data, error) {
	if !i.hasConstructor && len(args) > 0 {
		return nil, fmt.Errorf("no constructor declared, got %d arguments", len(args))
	}
	packed, err := i.constructor.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}
	return packed, nil
}

// DeployData produces the input of a contract creation: the bytecode of the
// document followed by the encoded constructor arguments.
func (i *Interface) DeployData(args ...any) (sandbox.Data, error) {
	if len(i.bytecode) == 0 {
		return nil, fmt.Errorf("interface carries no bytecode")
	}
	packed, err := i.EncodeConstructor(args...)
	if err != nil {
		return nil, err
	}
	res := make(sandbox.Data, 0, len(i.bytecode)+len(packed))
	res = append(res, i.bytecode...)
	return append(res, packed...), nil
}

// DecodedLog is a log decoded using an event declaration.
type DecodedLog struct {
	Event  *Event
	Values map[string]any
}

// DecodeLog matches the first topic of the given log against the declared
// non-anonymous events and decodes its indexed and non-indexed fields.
func (i *Interface) DecodeLog(log sandbox.Log) (DecodedLog, error) {
	if len(log.Topics) == 0 {
		return DecodedLog{}, fmt.Errorf("log without topics")
	}
	for _, event := range i.events {
		if event.Anonymous || event.ID != log.Topics[0] {
			continue
		}
		values := map[string]any{}
		if err := event.inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
			return DecodedLog{}, fmt.Errorf("failed to decode data of %s: %w", event.Signature, err)
		}
		var indexed []common.Hash
		for _, topic := range log.Topics[1:] {
			indexed = append(indexed, common.Hash(topic))
		}
		var indexedArgs gethabi.Arguments
		for _, arg := range event.inputs {
			if arg.Indexed {
				indexedArgs = append(indexedArgs, arg)
			}
		}
		if err := gethabi.ParseTopicsIntoMap(values, indexedArgs, indexed); err != nil {
			return DecodedLog{}, fmt.Errorf("failed to decode topics of %s: %w", event.Signature, err)
		}
		return DecodedLog{Event: event, Values: values}, nil
	}
	return DecodedLog{}, fmt.Errorf("no event matching topic %v", log.Topics[0])
}
