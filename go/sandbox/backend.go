// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sandbox

import "fmt"

//go:generate mockgen -source backend.go -destination backend_mock.go -package sandbox

// Backend is an interface for a component capable of executing a single
// transaction envelope against a view on the account state. Implementations
// handle the charging of intrinsic gas, the checking and incrementing of
// nonces, value transfers, and the interpretation of contract code.
type Backend interface {
	// Execute runs the given envelope on the provided state. If commit is
	// false, the backend must not modify the view. If commit is true, all
	// effects of the execution are written to the view, independently of
	// the outcome. Dropping the effects of failed executions is up to the
	// caller. A non-nil error signals a failure of the backend itself and
	// not a failed execution.
	Execute(envelope Envelope, state StateView, commit bool) (Outcome, error)
}

// StateView is the interface through which backends access and manipulate
// account state. Accounts not present in the view have a zero balance, a
// zero nonce, no code, and empty storage.
type StateView interface {
	AccountExists(Address) bool

	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetNonce(Address) uint64
	SetNonce(Address, uint64)

	GetCode(Address) Code
	SetCode(Address, Code)

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word)

	// DeleteAccount removes the account and all its storage from the view.
	DeleteAccount(Address)

	// Accounts lists the addresses of all accounts present in the view in
	// ascending order.
	Accounts() []Address

	// StorageKeys lists the keys of all non-zero storage slots of the given
	// account in ascending order.
	StorageKeys(Address) []Key

	// CreateSnapshot marks the current state of the view.
	CreateSnapshot() Snapshot
	// RestoreSnapshot undoes all modifications made since the given
	// snapshot was created. Snapshots created after it become invalid.
	RestoreSnapshot(Snapshot)
}

// Envelope summarizes the parameters of a transaction to be executed by a
// backend. It is built per dispatch and not modified after submission.
type Envelope struct {
	Sender    Address  // the sender of the transaction, paying for its execution
	Recipient *Address // the receiver of the transaction, nil if a new contract is to be created
	Value     Value    // the amount of network currency to transfer to the recipient
	Input     Data     // the input data for the transaction, the init code on creates
	GasLimit  Gas      // the maximum amount of gas that can be used by the transaction
}

// IsCreate returns true if the envelope requests the creation of a contract.
func (e Envelope) IsCreate() bool {
	return e.Recipient == nil
}

// OutcomeKind classifies a completed execution.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Revert
	Halt
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Revert:
		return "revert"
	case Halt:
		return "halt"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", k)
	}
}

// OutputKind discriminates the output of successful executions.
type OutputKind int

const (
	Returned OutputKind = iota // a call returned bytes
	Created                    // a create produced a new contract
)

func (k OutputKind) String() string {
	switch k {
	case Returned:
		return "returned"
	case Created:
		return "created"
	default:
		return fmt.Sprintf("OutputKind(%d)", k)
	}
}

// Outcome is the tagged result of an execution. Only the fields belonging to
// its Kind are populated; use the constructors below to build instances.
type Outcome struct {
	Kind OutcomeKind

	// Success
	OutputKind     OutputKind
	CreatedAddress Address
	Output         Data // returned bytes on Success/Returned and on Revert
	Logs           []Log

	// Halt
	Reason string

	GasUsed Gas
}

// Succeeded creates a successful outcome of a call returning the given data.
func Succeeded(output Data, gasUsed Gas, logs []Log) Outcome {
	return Outcome{
		Kind:       Success,
		OutputKind: Returned,
		Output:     output,
		GasUsed:    gasUsed,
		Logs:       logs,
	}
}

// CreatedContract creates a successful outcome of a contract creation.
func CreatedContract(address Address, gasUsed Gas, logs []Log) Outcome {
	return Outcome{
		Kind:           Success,
		OutputKind:     Created,
		CreatedAddress: address,
		GasUsed:        gasUsed,
		Logs:           logs,
	}
}

// Reverted creates an outcome of an execution that ended in a revert.
func Reverted(output Data, gasUsed Gas) Outcome {
	return Outcome{
		Kind:    Revert,
		Output:  output,
		GasUsed: gasUsed,
	}
}

// Halted creates an outcome of an execution that stopped exceptionally.
func Halted(reason string, gasUsed Gas) Outcome {
	return Outcome{
		Kind:    Halt,
		Reason:  reason,
		GasUsed: gasUsed,
	}
}

// Err converts failed outcomes into their error representation. The result
// is nil for successful outcomes.
func (o Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case Revert:
		return &RevertError{Data: o.Output}
	case Halt:
		return &HaltError{Reason: o.Reason}
	default:
		return fmt.Errorf("%w: kind %v", ErrUnexpectedOutcome, o.Kind)
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		if o.OutputKind == Created {
			return fmt.Sprintf("success(created %v, gas %d)", o.CreatedAddress, o.GasUsed)
		}
		return fmt.Sprintf("success(returned %v, gas %d)", o.Output, o.GasUsed)
	case Revert:
		return fmt.Sprintf("revert(%v, gas %d)", o.Output, o.GasUsed)
	case Halt:
		return fmt.Sprintf("halt(%s, gas %d)", o.Reason, o.GasUsed)
	}
	return o.Kind.String()
}
