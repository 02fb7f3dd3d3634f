// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package dispatch builds transaction envelopes, submits them to an
// execution backend, classifies the outcomes, and commits the effects of
// successful state-changing transactions to an account store.
package dispatch

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/Fantom-foundation/evm-sandbox/go/state"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultGasLimit is the gas limit of dispatched transactions if no other
// limit is configured.
const DefaultGasLimit sandbox.Gas = 30_000_000

// Operation names the kind of a dispatch.
type Operation string

const (
	OpDeploy   Operation = "deploy"
	OpCall     Operation = "call"
	OpTransact Operation = "transact"
)

// Config summarizes the tuning parameters of a Dispatcher.
type Config struct {
	// GasLimit is the gas limit of every dispatched transaction. If zero,
	// DefaultGasLimit is used.
	GasLimit sandbox.Gas
	// Observer is informed about every dispatch. If nil, dispatches are not
	// observed.
	Observer Observer
}

// Result summarizes the effects of a successful call or transaction.
type Result struct {
	Output  sandbox.Data
	GasUsed sandbox.Gas
	Logs    []sandbox.Log
}

// Dispatcher serializes transactions on a Store. Read-only calls may run
// in parallel with each other, while deployments and transactions are
// executed exclusively, one at a time.
type Dispatcher struct {
	mu       sync.RWMutex
	store    *state.Store
	backend  sandbox.Backend
	gasLimit sandbox.Gas
	observer Observer
}

// NewDispatcher creates a dispatcher executing transactions on the given
// store using the given backend.
func NewDispatcher(store *state.Store, backend sandbox.Backend, config Config) *Dispatcher {
	if config.GasLimit <= 0 {
		config.GasLimit = DefaultGasLimit
	}
	if config.Observer == nil {
		config.Observer = NoopObserver{}
	}
	return &Dispatcher{
		store:    store,
		backend:  backend,
		gasLimit: config.GasLimit,
		observer: config.Observer,
	}
}

// GasLimit returns the gas limit used for dispatched transactions.
func (d *Dispatcher) GasLimit() sandbox.Gas {
	return d.gasLimit
}

// Deploy creates a new contract by running the given init code. On success,
// the address of the new contract and the consumed gas are returned and all
// effects are committed. Otherwise the store remains unchanged.
func (d *Dispatcher) Deploy(deployer sandbox.Address, code sandbox.Code, value sandbox.Value) (sandbox.Address, sandbox.Gas, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	outcome, err := d.dispatch(OpDeploy, sandbox.Envelope{
		Sender:   deployer,
		Value:    value,
		Input:    sandbox.Data(code),
		GasLimit: d.gasLimit,
	}, true, sandbox.Created)
	if err != nil {
		return sandbox.Address{}, 0, err
	}
	return outcome.CreatedAddress, outcome.GasUsed, nil
}

// Call runs a read-only call on the current state. Its effects are never
// committed, independently of the outcome.
func (d *Dispatcher) Call(caller, target sandbox.Address, input sandbox.Data) (Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	outcome, err := d.dispatch(OpCall, sandbox.Envelope{
		Sender:    caller,
		Recipient: &target,
		Input:     input,
		GasLimit:  d.gasLimit,
	}, false, sandbox.Returned)
	if err != nil {
		return Result{}, err
	}
	return toResult(outcome), nil
}

// Transact runs a state-changing transaction. Its effects are committed
// if and only if the execution succeeds.
func (d *Dispatcher) Transact(caller, target sandbox.Address, input sandbox.Data, value sandbox.Value) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	outcome, err := d.dispatch(OpTransact, sandbox.Envelope{
		Sender:    caller,
		Recipient: &target,
		Value:     value,
		Input:     input,
		GasLimit:  d.gasLimit,
	}, true, sandbox.Returned)
	if err != nil {
		return Result{}, err
	}
	return toResult(outcome), nil
}

// CreateAccount creates or resets the given account. It is ordered with
// respect to all transactions of this dispatcher.
func (d *Dispatcher) CreateAccount(address sandbox.Address, balance sandbox.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.CreateAccount(address, balance)
}

// GetBalance returns the committed balance of the given account.
func (d *Dispatcher) GetBalance(address sandbox.Address) sandbox.Value {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.GetBalance(address)
}

// GetNonce returns the committed nonce of the given account.
func (d *Dispatcher) GetNonce(address sandbox.Address) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.GetNonce(address)
}

// GetCode returns the committed code of the given account.
func (d *Dispatcher) GetCode(address sandbox.Address) sandbox.Code {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.GetCode(address)
}

// GetStorage returns the committed value of the given storage slot.
func (d *Dispatcher) GetStorage(address sandbox.Address, key sandbox.Key) sandbox.Word {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.GetStorage(address, key)
}

// dispatch submits the envelope to the backend and classifies the outcome.
// Failed executions and successful ones not producing the expected kind of
// output are reported as errors. Effects are committed only if requested
// and the execution succeeded as expected. The caller must hold the lock
// required by the operation.
func (d *Dispatcher) dispatch(op Operation, envelope sandbox.Envelope, commit bool, expected sandbox.OutputKind) (sandbox.Outcome, error) {
	overlay := d.store.Snapshot()
	outcome, err := d.backend.Execute(envelope, overlay, commit)
	if err != nil {
		d.observer.Failed(op, err)
		return sandbox.Outcome{}, fmt.Errorf("backend failed to execute %v: %w", op, err)
	}

	log.Debug("Dispatched transaction",
		"op", op,
		"sender", envelope.Sender,
		"recipient", recipientString(envelope.Recipient),
		"outcome", outcome.Kind,
		"gas", outcome.GasUsed,
	)
	d.observer.Dispatched(op, outcome)

	if outcome.Kind != sandbox.Success {
		return sandbox.Outcome{}, outcome.Err()
	}
	if outcome.OutputKind != expected {
		return sandbox.Outcome{}, fmt.Errorf("%w: %v produced %v", sandbox.ErrUnexpectedOutcome, op, outcome)
	}
	if commit {
		if err := d.store.Commit(overlay); err != nil {
			return sandbox.Outcome{}, fmt.Errorf("failed to commit %v: %w", op, err)
		}
	}
	return outcome, nil
}

func toResult(outcome sandbox.Outcome) Result {
	logs := make([]sandbox.Log, 0, len(outcome.Logs))
	for _, l := range outcome.Logs {
		logs = append(logs, l.Clone())
	}
	return Result{
		Output:  slices.Clone(outcome.Output),
		GasUsed: outcome.GasUsed,
		Logs:    logs,
	}
}

func recipientString(recipient *sandbox.Address) string {
	if recipient == nil {
		return "<create>"
	}
	return recipient.String()
}
