// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// parseArgs converts command line arguments into values accepted by the ABI
// encoder for the given parameter types. Only elementary types are supported.
func parseArgs(types []string, raw []string) ([]any, error) {
	if len(types) != len(raw) {
		return nil, fmt.Errorf("wrong number of arguments, wanted %d, got %d", len(types), len(raw))
	}
	res := make([]any, 0, len(raw))
	for i, name := range types {
		value, err := parseArg(name, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		res = append(res, value)
	}
	return res, nil
}

func parseArg(name string, raw string) (any, error) {
	typ, err := gethabi.NewType(name, "", nil)
	if err != nil {
		return nil, err
	}
	switch typ.T {
	case gethabi.AddressTy:
		address, err := sandbox.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		return common.Address(address), nil
	case gethabi.BoolTy:
		return strconv.ParseBool(raw)
	case gethabi.StringTy:
		return raw, nil
	case gethabi.BytesTy:
		return sandbox.DecodeHex(raw)
	case gethabi.FixedBytesTy:
		data, err := sandbox.DecodeHex(raw)
		if err != nil {
			return nil, err
		}
		if len(data) != typ.Size {
			return nil, fmt.Errorf("wrong length for %s, wanted %d bytes, got %d", name, typ.Size, len(data))
		}
		res := reflect.New(typ.GetType()).Elem()
		reflect.Copy(res, reflect.ValueOf(data))
		return res.Interface(), nil
	case gethabi.IntTy, gethabi.UintTy:
		return parseInteger(typ, raw)
	default:
		return nil, fmt.Errorf("unsupported argument type %s", name)
	}
}

func parseInteger(typ gethabi.Type, raw string) (any, error) {
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if typ.T == gethabi.UintTy && value.Sign() < 0 {
		return nil, fmt.Errorf("negative value %v for %s", value, typ)
	}
	bits := typ.Size
	if typ.T == gethabi.IntTy {
		bits--
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	if value.Sign() < 0 {
		limit.Add(limit, big.NewInt(1))
	}
	if value.CmpAbs(limit) >= 0 {
		return nil, fmt.Errorf("value %v out of range for %s", value, typ)
	}

	goType := typ.GetType()
	if goType.Kind() == reflect.Ptr {
		return value, nil
	}
	if typ.T == gethabi.UintTy {
		return reflect.ValueOf(value.Uint64()).Convert(goType).Interface(), nil
	}
	return reflect.ValueOf(value.Int64()).Convert(goType).Interface(), nil
}
