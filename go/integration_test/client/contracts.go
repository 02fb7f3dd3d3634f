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
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/core/vm"
)

// program is a minimal assembler supporting forward references to jump
// destinations.
type program struct {
	code   sandbox.Code
	labels map[string]int
	refs   map[int]string
}

func newProgram() *program {
	return &program{labels: map[string]int{}, refs: map[int]string{}}
}

func (p *program) op(ops ...vm.OpCode) *program {
	for _, op := range ops {
		p.code = append(p.code, byte(op))
	}
	return p
}

// push appends the shortest PUSH instruction holding the given data.
func (p *program) push(data ...byte) *program {
	if len(data) == 0 || len(data) > 32 {
		panic(fmt.Sprintf("invalid push of %d bytes", len(data)))
	}
	p.code = append(p.code, byte(vm.PUSH1)+byte(len(data)-1))
	p.code = append(p.code, data...)
	return p
}

// pushLabel pushes the position of the given jump destination.
func (p *program) pushLabel(label string) *program {
	p.code = append(p.code, byte(vm.PUSH2))
	p.refs[len(p.code)] = label
	p.code = append(p.code, 0, 0)
	return p
}

// label marks a jump destination.
func (p *program) label(label string) *program {
	p.labels[label] = len(p.code)
	return p.op(vm.JUMPDEST)
}

func (p *program) bytes(data []byte) *program {
	p.code = append(p.code, data...)
	return p
}

func (p *program) build() sandbox.Code {
	res := sandbox.Code(append([]byte{}, p.code...))
	for pos, label := range p.refs {
		target, found := p.labels[label]
		if !found {
			panic(fmt.Sprintf("undefined label %q", label))
		}
		res[pos] = byte(target >> 8)
		res[pos+1] = byte(target)
	}
	return res
}

// deployCode produces init code running the given constructor code, which
// must leave the stack empty, before returning the runtime code.
func deployCode(constructor sandbox.Code, runtime sandbox.Code) sandbox.Code {
	// PUSH2 size, PUSH2 offset, PUSH1 0, CODECOPY, PUSH2 size, PUSH1 0, RETURN
	const copyLength = 15
	offset := len(constructor) + copyLength
	size := len(runtime)
	return newProgram().
		bytes(constructor).
		push(byte(size>>8), byte(size)).
		push(byte(offset>>8), byte(offset)).
		push(0).
		op(vm.CODECOPY).
		push(byte(size>>8), byte(size)).
		push(0).
		op(vm.RETURN).
		bytes(runtime).
		build()
}

// counterInterface declares a counter accumulating the amounts passed to
// add. Every addition emits an Added event.
var counterInterface = []string{
	"constructor(uint256 initial)",
	"function get() view returns (uint256)",
	"function add(uint256 amount)",
	"event Added(address indexed by, uint256 total)",
}

// counterCode produces the init code of the counter contract. The initial
// value is read from the ABI encoded constructor argument appended to the
// returned code.
func counterCode(iface *abi.Interface) sandbox.Code {
	get, _ := iface.ResolveSelector("get")
	add, _ := iface.ResolveSelector("add")
	added, _ := iface.Event("Added")

	runtime := newProgram().
		push(0).op(vm.CALLDATALOAD).push(0xe0).op(vm.SHR).
		op(vm.DUP1).push(get[:]...).op(vm.EQ).pushLabel("get").op(vm.JUMPI).
		op(vm.DUP1).push(add[:]...).op(vm.EQ).pushLabel("add").op(vm.JUMPI).
		push(0).op(vm.DUP1, vm.REVERT).
		label("get").
		push(0).op(vm.SLOAD).push(0).op(vm.MSTORE).
		push(32).push(0).op(vm.RETURN).
		label("add").
		push(4).op(vm.CALLDATALOAD).push(0).op(vm.SLOAD).op(vm.ADD).
		op(vm.DUP1).push(0).op(vm.SSTORE).
		push(0).op(vm.MSTORE).
		op(vm.CALLER).push(added.ID[:]...).push(32).push(0).op(vm.LOG2).
		op(vm.STOP).
		build()

	// The constructor argument follows the init code, whose length is the
	// length of the constructor, the copy sequence, and the runtime code.
	const constructorLength = 14
	argOffset := constructorLength + 15 + len(runtime)
	constructor := newProgram().
		push(32).push(byte(argOffset>>8), byte(argOffset)).push(0).op(vm.CODECOPY).
		push(0).op(vm.MLOAD).push(0).op(vm.SSTORE).
		build()
	if len(constructor) != constructorLength {
		panic(fmt.Sprintf("unexpected constructor length %d", len(constructor)))
	}
	return deployCode(constructor, runtime)
}

// revertingCode produces runtime code reverting every call with the given
// data.
func revertingCode(data []byte) sandbox.Code {
	// PUSH2 size, PUSH2 offset, PUSH1 0, CODECOPY, PUSH2 size, PUSH1 0, REVERT
	const offset = 15
	size := len(data)
	return newProgram().
		push(byte(size>>8), byte(size)).
		push(0, offset).
		push(0).
		op(vm.CODECOPY).
		push(byte(size>>8), byte(size)).
		push(0).
		op(vm.REVERT).
		bytes(data).
		build()
}
