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
	"strings"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"golang.org/x/crypto/sha3"
)

// Selector computes the 4-byte function selector of the given canonical
// signature, e.g. "transfer(address,uint256)". The selector consists of
// the first four bytes of the Keccak-256 hash of the signature.
func Selector(signature string) [4]byte {
	var res [4]byte
	hash := keccak256([]byte(signature))
	copy(res[:], hash[:4])
	return res
}

// Signature builds the canonical signature of a function or event from its
// name and canonical parameter type names.
func Signature(name string, types []string) string {
	return name + "(" + strings.Join(types, ",") + ")"
}

func keccak256(data []byte) sandbox.Hash {
	var res sandbox.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	hasher.Sum(res[:0])
	return res
}
