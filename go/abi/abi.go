// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package abi resolves contract interface documents into function
// descriptors that can be used to encode calls and decode their results.
package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

// Function describes a callable function of a contract interface.
type Function struct {
	Name            string
	Signature       string  // canonical signature, e.g. transfer(address,uint256)
	Selector        [4]byte // first 4 bytes of the hashed signature
	Inputs          []string
	Outputs         []string
	IsStateMutating bool // false for pure and view functions
	IsPayable       bool

	inputs  gethabi.Arguments
	outputs gethabi.Arguments
}

// Event describes an event that may be emitted by a contract.
type Event struct {
	Name      string
	Signature string
	ID        sandbox.Hash // topic 0 of non-anonymous events
	Inputs    []string
	Anonymous bool

	inputs gethabi.Arguments
}

// Interface is the resolved interface of a contract. Instances are
// immutable after loading and may be shared between goroutines.
type Interface struct {
	functions      []*Function // in declaration order
	byName         map[string][]*Function
	bySignature    map[string]*Function
	events         []*Event
	constructor    gethabi.Arguments
	hasConstructor bool
	bytecode       sandbox.Code
}

// declaration is the JSON representation of a single ABI entry.
type declaration struct {
	Type            string                       `json:"type"`
	Name            string                       `json:"name"`
	Inputs          []gethabi.ArgumentMarshaling `json:"inputs"`
	Outputs         []gethabi.ArgumentMarshaling `json:"outputs"`
	StateMutability string                       `json:"stateMutability"`
	Constant        bool                         `json:"constant"`
	Payable         bool                         `json:"payable"`
	Anonymous       bool                         `json:"anonymous"`
}

// document is the envelope of an interface document, as produced by common
// compiler tool chains. The bytecode is either a hex string or an object
// with an "object" field holding the hex string.
type document struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

// Load parses an interface document. The document is either a JSON object
// with an "abi" and an optional "bytecode" field, or a bare JSON list of
// ABI declarations. Documents not matching this schema are rejected with
// an error matching sandbox.ErrMalformedInterface.
func Load(data []byte) (*Interface, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return loadDeclarations(data, nil)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("invalid document: %v", err)
	}
	if len(doc.ABI) == 0 || bytes.Equal(doc.ABI, []byte("null")) {
		return nil, malformed("missing abi field")
	}

	declarations := []byte(doc.ABI)
	// Some tool chains embed the ABI as a JSON encoded string.
	var embedded string
	if err := json.Unmarshal(doc.ABI, &embedded); err == nil {
		declarations = []byte(embedded)
	}

	code, err := parseBytecode(doc.Bytecode)
	if err != nil {
		return nil, err
	}
	return loadDeclarations(declarations, code)
}

// LoadFile reads and parses the interface document stored in the given file.
func LoadFile(path string) (*Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read interface document: %w", err)
	}
	res, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func loadDeclarations(data []byte, code sandbox.Code) (*Interface, error) {
	var declarations []declaration
	if err := json.Unmarshal(data, &declarations); err != nil {
		return nil, malformed("invalid abi: %v", err)
	}
	return build(declarations, code)
}

func parseBytecode(raw json.RawMessage) (sandbox.Code, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var object struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &object); err != nil {
			return nil, malformed("bytecode is neither a string nor an object")
		}
		text = object.Object
	}
	code, err := sandbox.DecodeHex(text)
	if err != nil {
		return nil, malformed("invalid bytecode: %v", err)
	}
	if len(code) == 0 {
		return nil, nil
	}
	return code, nil
}

func build(declarations []declaration, code sandbox.Code) (*Interface, error) {
	res := &Interface{
		byName:      map[string][]*Function{},
		bySignature: map[string]*Function{},
		bytecode:    code,
	}
	for i, d := range declarations {
		if err := res.add(d); err != nil {
			return nil, fmt.Errorf("declaration %d: %w", i, err)
		}
	}
	return res, nil
}

func (i *Interface) add(d declaration) error {
	switch d.Type {
	case "function", "":
		if d.Name == "" {
			return malformed("function without name")
		}
		inputs, err := toArguments(d.Inputs)
		if err != nil {
			return err
		}
		outputs, err := toArguments(d.Outputs)
		if err != nil {
			return err
		}
		mutating, payable, err := classifyMutability(d)
		if err != nil {
			return err
		}
		fn := &Function{
			Name:            d.Name,
			Inputs:          typeNames(inputs),
			Outputs:         typeNames(outputs),
			IsStateMutating: mutating,
			IsPayable:       payable,
			inputs:          inputs,
			outputs:         outputs,
		}
		fn.Signature = Signature(fn.Name, fn.Inputs)
		fn.Selector = Selector(fn.Signature)
		if _, found := i.bySignature[fn.Signature]; found {
			return malformed("duplicate function %s", fn.Signature)
		}
		i.functions = append(i.functions, fn)
		i.byName[fn.Name] = append(i.byName[fn.Name], fn)
		i.bySignature[fn.Signature] = fn
	case "constructor":
		if i.hasConstructor {
			return malformed("multiple constructors")
		}
		inputs, err := toArguments(d.Inputs)
		if err != nil {
			return err
		}
		if _, _, err := classifyMutability(d); err != nil {
			return err
		}
		i.hasConstructor = true
		i.constructor = inputs
	case "event":
		if d.Name == "" {
			return malformed("event without name")
		}
		inputs, err := toArguments(d.Inputs)
		if err != nil {
			return err
		}
		event := &Event{
			Name:      d.Name,
			Inputs:    typeNames(inputs),
			Anonymous: d.Anonymous,
			inputs:    inputs,
		}
		event.Signature = Signature(event.Name, event.Inputs)
		event.ID = keccak256([]byte(event.Signature))
		i.events = append(i.events, event)
	case "error":
		// Custom errors are validated but not resolved.
		if _, err := toArguments(d.Inputs); err != nil {
			return err
		}
	case "fallback", "receive":
		// No parameters, nothing to resolve.
	default:
		return malformed("unknown declaration type %q", d.Type)
	}
	return nil
}

// classifyMutability derives the two-way mutability classification of a
// declaration. Declarations lacking a stateMutability field fall back to
// the legacy constant and payable flags.
func classifyMutability(d declaration) (mutating bool, payable bool, err error) {
	switch d.StateMutability {
	case "pure", "view":
		return false, false, nil
	case "payable":
		return true, true, nil
	case "nonpayable":
		return true, false, nil
	case "":
		if d.Constant {
			return false, false, nil
		}
		return true, d.Payable, nil
	default:
		return false, false, malformed("unknown state mutability %q", d.StateMutability)
	}
}

func toArguments(list []gethabi.ArgumentMarshaling) (gethabi.Arguments, error) {
	res := make(gethabi.Arguments, 0, len(list))
	for _, arg := range list {
		typ, err := gethabi.NewType(arg.Type, arg.InternalType, arg.Components)
		if err != nil {
			return nil, malformed("invalid type %q: %v", arg.Type, err)
		}
		res = append(res, gethabi.Argument{
			Name:    arg.Name,
			Type:    typ,
			Indexed: arg.Indexed,
		})
	}
	return res, nil
}

func typeNames(args gethabi.Arguments) []string {
	res := make([]string, 0, len(args))
	for _, arg := range args {
		res = append(res, arg.Type.String())
	}
	return res
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sandbox.ErrMalformedInterface, fmt.Sprintf(format, args...))
}

// Functions lists all functions of the interface in declaration order.
func (i *Interface) Functions() []*Function {
	return slices.Clone(i.functions)
}

// Function looks up a function by its name or by its canonical signature.
// Bare names shared by multiple overloads are rejected with an error
// matching sandbox.ErrAmbiguousFunction; the signature needs to be used
// to select one of them.
func (i *Interface) Function(name string) (*Function, error) {
	if strings.Contains(name, "(") {
		if fn, found := i.bySignature[strings.ReplaceAll(name, " ", "")]; found {
			return fn, nil
		}
		return nil, fmt.Errorf("%w: %s", sandbox.ErrUnknownFunction, name)
	}
	candidates := i.byName[name]
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %s", sandbox.ErrUnknownFunction, name)
	case 1:
		return candidates[0], nil
	default:
		signatures := make([]string, 0, len(candidates))
		for _, fn := range candidates {
			signatures = append(signatures, fn.Signature)
		}
		return nil, fmt.Errorf("%w: %s is one of %s", sandbox.ErrAmbiguousFunction, name, strings.Join(signatures, ", "))
	}
}

// FunctionParams returns the input and output type names of the given
// function in declaration order.
func (i *Interface) FunctionParams(name string) (inputs []string, outputs []string, err error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, nil, err
	}
	return slices.Clone(fn.Inputs), slices.Clone(fn.Outputs), nil
}

// ResolveSelector returns the selector of the given function.
func (i *Interface) ResolveSelector(name string) ([4]byte, error) {
	fn, err := i.Function(name)
	if err != nil {
		return [4]byte{}, err
	}
	return fn.Selector, nil
}

// ConstructorParams returns the parameter types of the constructor. The
// second result is false if the interface declares no constructor, which
// is different from a constructor declared without parameters.
func (i *Interface) ConstructorParams() ([]string, bool) {
	if !i.hasConstructor {
		return nil, false
	}
	return typeNames(i.constructor), true
}

// Bytecode returns the creation code included in the document, nil if the
// document carries no bytecode.
func (i *Interface) Bytecode() sandbox.Code {
	return bytes.Clone(i.bytecode)
}

// Events lists all events of the interface in declaration order.
func (i *Interface) Events() []*Event {
	return slices.Clone(i.events)
}

// Event looks up an event by its name.
func (i *Interface) Event(name string) (*Event, bool) {
	for _, event := range i.events {
		if event.Name == name {
			return event, true
		}
	}
	return nil, false
}

func (f *Function) String() string {
	return f.Signature
}
