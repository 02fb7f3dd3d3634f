// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"fmt"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// errCodeExecution is the halting reason of calls targeting contracts.
const errCodeExecution = "code execution not supported"

func call(envelope sandbox.Envelope, view sandbox.StateView, gas sandbox.Gas) sandbox.Outcome {
	recipient := *envelope.Recipient
	if len(view.GetCode(recipient)) > 0 {
		return sandbox.Halted(errCodeExecution, envelope.GasLimit)
	}

	snapshot := view.CreateSnapshot()
	if err := transferValue(envelope.Sender, recipient, envelope.Value, view); err != nil {
		view.RestoreSnapshot(snapshot)
		return sandbox.Halted(err.Error(), envelope.GasLimit)
	}
	return sandbox.Succeeded(nil, gas, nil)
}

// create installs the init code of the envelope as the code of a new
// contract. The code is not executed.
func create(envelope sandbox.Envelope, view sandbox.StateView, nonce uint64, gas sandbox.Gas) sandbox.Outcome {
	address := sandbox.Address(crypto.CreateAddress(common.Address(envelope.Sender), nonce))
	if view.GetNonce(address) != 0 || len(view.GetCode(address)) > 0 {
		return sandbox.Halted("contract address collision", envelope.GasLimit)
	}

	gas += CreateDataGas * sandbox.Gas(len(envelope.Input))
	if gas > envelope.GasLimit {
		return sandbox.Halted("out of gas", envelope.GasLimit)
	}

	snapshot := view.CreateSnapshot()
	if err := transferValue(envelope.Sender, address, envelope.Value, view); err != nil {
		view.RestoreSnapshot(snapshot)
		return sandbox.Halted(err.Error(), envelope.GasLimit)
	}
	view.SetNonce(address, 1)
	view.SetCode(address, sandbox.Code(envelope.Input))
	return sandbox.CreatedContract(address, gas, nil)
}

func transferValue(from, to sandbox.Address, value sandbox.Value, view sandbox.StateView) error {
	if value.IsZero() {
		return nil
	}
	senderBalance := view.GetBalance(from)
	if senderBalance.Cmp(value) < 0 {
		return fmt.Errorf("insufficient balance: %v < %v", senderBalance, value)
	}

	if from == to {
		return nil
	}
	receiverBalance, overflow := sandbox.AddOverflow(view.GetBalance(to), value)
	if overflow {
		return fmt.Errorf("balance overflow: address %v", to)
	}

	view.SetBalance(from, sandbox.Sub(senderBalance, value))
	view.SetBalance(to, receiverBalance)

	return nil
}
