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
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/holiman/uint256"
)

// Unit is a denomination of the network currency, expressed in wei.
type Unit uint64

const (
	Wei   Unit = 1
	Gwei  Unit = 1_000_000_000
	Ether Unit = 1_000_000_000_000_000_000
)

// ToWei converts the given amount of the given unit into wei.
func ToWei(amount uint64, unit Unit) sandbox.Value {
	res := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(unit)))
	return sandbox.ValueFromUint256(res)
}
