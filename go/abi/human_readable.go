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
	"regexp"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

// This file provides a parser for the human-readable ABI format, in which
// each declaration is given in Solidity syntax, for instance
//
//	function transfer(address to, uint256 amount) external returns (bool)
//	constructor(uint256 supply)
//	event Transfer(address indexed from, address indexed to, uint256 value)
//
// Tuple parameters are not supported by this format.

var (
	functionPattern    = regexp.MustCompile(`^function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(([^()]*)\)\s*([^()]*?)\s*(?:returns\s*\(([^()]*)\))?$`)
	constructorPattern = regexp.MustCompile(`^constructor\s*\(([^()]*)\)\s*([^()]*?)$`)
	eventPattern       = regexp.MustCompile(`^event\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(([^()]*)\)\s*(anonymous)?$`)
	intTypePattern     = regexp.MustCompile(`^(u?int)((?:\[[0-9]*\])*)$`)
	identifierPattern  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// ParseHumanReadable builds an interface from declarations in the
// human-readable ABI format. Empty lines are ignored. Malformed lines are
// reported with an error matching sandbox.ErrMalformedInterface.
func ParseHumanReadable(lines []string) (*Interface, error) {
	declarations := make([]declaration, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSuffix(strings.TrimSpace(line), ";")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d, err := parseDeclaration(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		declarations = append(declarations, d)
	}
	return build(declarations, nil)
}

func parseDeclaration(line string) (declaration, error) {
	if match := functionPattern.FindStringSubmatch(line); match != nil {
		inputs, err := parseParameters(match[2], false)
		if err != nil {
			return declaration{}, err
		}
		outputs, err := parseParameters(match[4], false)
		if err != nil {
			return declaration{}, err
		}
		mutability, err := parseModifiers(match[3])
		if err != nil {
			return declaration{}, err
		}
		return declaration{
			Type:            "function",
			Name:            match[1],
			Inputs:          inputs,
			Outputs:         outputs,
			StateMutability: mutability,
		}, nil
	}
	if match := constructorPattern.FindStringSubmatch(line); match != nil {
		inputs, err := parseParameters(match[1], false)
		if err != nil {
			return declaration{}, err
		}
		mutability, err := parseModifiers(match[2])
		if err != nil {
			return declaration{}, err
		}
		return declaration{
			Type:            "constructor",
			Inputs:          inputs,
			StateMutability: mutability,
		}, nil
	}
	if match := eventPattern.FindStringSubmatch(line); match != nil {
		inputs, err := parseParameters(match[2], true)
		if err != nil {
			return declaration{}, err
		}
		return declaration{
			Type:      "event",
			Name:      match[1],
			Inputs:    inputs,
			Anonymous: match[3] != "",
		}, nil
	}
	return declaration{}, malformed("unable to parse %q", line)
}

func parseParameters(list string, allowIndexed bool) ([]gethabi.ArgumentMarshaling, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return []gethabi.ArgumentMarshaling{}, nil
	}
	var res []gethabi.ArgumentMarshaling
	for _, param := range strings.Split(list, ",") {
		fields := strings.Fields(param)
		if len(fields) == 0 {
			return nil, malformed("empty parameter in %q", list)
		}
		arg := gethabi.ArgumentMarshaling{Type: normalizeType(fields[0])}
		for _, field := range fields[1:] {
			switch {
			case field == "indexed" && allowIndexed:
				arg.Indexed = true
			case field == "memory" || field == "calldata" || field == "storage":
				// data locations do not affect the interface
			case arg.Name == "" && identifierPattern.MatchString(field):
				arg.Name = field
			default:
				return nil, malformed("unexpected %q in parameter %q", field, strings.TrimSpace(param))
			}
		}
		res = append(res, arg)
	}
	return res, nil
}

// parseModifiers maps the visibility and mutability modifiers following a
// function header to the state mutability of the declaration.
func parseModifiers(modifiers string) (string, error) {
	mutability := "nonpayable"
	for _, modifier := range strings.Fields(modifiers) {
		switch modifier {
		case "external", "public":
		case "pure", "view", "payable", "nonpayable":
			mutability = modifier
		default:
			return "", malformed("unsupported modifier %q", modifier)
		}
	}
	return mutability, nil
}

// normalizeType expands the int and uint aliases to their 256-bit forms.
func normalizeType(t string) string {
	if match := intTypePattern.FindStringSubmatch(t); match != nil {
		return match[1] + "256" + match[2]
	}
	return t
}
