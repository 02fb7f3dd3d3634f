// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package floria provides a lightweight execution backend handling value
// transfers and contract deployments without interpreting any code.
package floria

import (
	"fmt"
	"math"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/log"
)

const (
	TxGas                   = 21_000
	TxGasContractCreation   = 53_000
	TxDataNonZeroGasEIP2028 = 16
	TxDataZeroGasEIP2028    = 4
	InitCodeWordGas         = 2
	CreateDataGas           = 200
)

func init() {
	sandbox.RegisterBackendFactory("floria", newBackend)
}

func newBackend(config any) (sandbox.Backend, error) {
	if config != nil {
		return nil, fmt.Errorf("floria backend does not support configuration, got %T", config)
	}
	return &backend{}, nil
}

type backend struct{}

func (b *backend) Execute(
	envelope sandbox.Envelope,
	view sandbox.StateView,
	commit bool,
) (sandbox.Outcome, error) {
	if envelope.GasLimit < 0 {
		return sandbox.Outcome{}, fmt.Errorf("invalid gas limit %d", envelope.GasLimit)
	}
	if !commit {
		snapshot := view.CreateSnapshot()
		defer view.RestoreSnapshot(snapshot)
	}

	// Rejected transactions have no effects and consume no gas.
	intrinsicGas := setupGasBilling(envelope)
	if envelope.GasLimit < intrinsicGas {
		return sandbox.Halted(fmt.Sprintf("intrinsic gas too low: have %d, want %d", envelope.GasLimit, intrinsicGas), 0), nil
	}
	if err := checkFunds(envelope, view); err != nil {
		return sandbox.Halted(err.Error(), 0), nil
	}
	nonce, err := handleNonce(envelope, view)
	if err != nil {
		return sandbox.Halted(err.Error(), 0), nil
	}

	var outcome sandbox.Outcome
	if envelope.IsCreate() {
		outcome = create(envelope, view, nonce, intrinsicGas)
	} else {
		outcome = call(envelope, view, intrinsicGas)
	}
	log.Trace("Floria execution", "sender", envelope.Sender, "outcome", outcome)
	return outcome, nil
}

func setupGasBilling(envelope sandbox.Envelope) sandbox.Gas {
	var gas sandbox.Gas
	if envelope.IsCreate() {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}

	if len(envelope.Input) > 0 {
		nonZeroBytes := sandbox.Gas(0)
		for _, inputByte := range envelope.Input {
			if inputByte != 0 {
				nonZeroBytes++
			}
		}
		zeroBytes := sandbox.Gas(len(envelope.Input)) - nonZeroBytes
		gas += zeroBytes * TxDataZeroGasEIP2028
		gas += nonZeroBytes * TxDataNonZeroGasEIP2028
	}

	if envelope.IsCreate() {
		words := (sandbox.Gas(len(envelope.Input)) + 31) / 32
		gas += words * InitCodeWordGas
	}
	return gas
}

// handleNonce increments the nonce of the sender and returns its value
// before the increment.
func handleNonce(envelope sandbox.Envelope, view sandbox.StateView) (uint64, error) {
	nonce := view.GetNonce(envelope.Sender)
	if nonce == math.MaxUint64 {
		return 0, fmt.Errorf("nonce has max value: address %v, nonce %d", envelope.Sender, nonce)
	}
	view.SetNonce(envelope.Sender, nonce+1)
	return nonce, nil
}

// checkFunds verifies that the sender can afford the transferred value. Gas
// is free of charge.
func checkFunds(envelope sandbox.Envelope, view sandbox.StateView) error {
	balance := view.GetBalance(envelope.Sender)
	if balance.Cmp(envelope.Value) < 0 {
		return fmt.Errorf("insufficient funds for value: address %v have %v want %v", envelope.Sender, balance, envelope.Value)
	}
	return nil
}
