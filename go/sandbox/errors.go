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

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrMalformedInterface is reported if an interface document does not
	// match the expected schema.
	ErrMalformedInterface = ConstError("malformed interface")

	// ErrUnknownFunction is reported if a function is looked up that is not
	// part of a loaded interface.
	ErrUnknownFunction = ConstError("unknown function")

	// ErrAmbiguousFunction is reported if a bare function name refers to
	// more than one overload. It also matches ErrUnknownFunction.
	ErrAmbiguousFunction = ambiguousFunctionError("ambiguous function name")

	// ErrInvalidAddress is reported for malformed address strings.
	ErrInvalidAddress = ConstError("invalid address")

	// ErrRevertedCall is matched by all errors reporting a reverted
	// execution. Use errors.As with *RevertError to get the returned data.
	ErrRevertedCall = ConstError("execution reverted")

	// ErrHaltedCall is matched by all errors reporting an execution that
	// halted exceptionally. Use errors.As with *HaltError for the reason.
	ErrHaltedCall = ConstError("execution halted")

	// ErrUnexpectedOutcome signals that a backend produced an outcome which
	// is inconsistent with the requested operation.
	ErrUnexpectedOutcome = ConstError("unexpected execution outcome")
)

type ambiguousFunctionError string

func (e ambiguousFunctionError) Error() string {
	return string(e)
}

func (e ambiguousFunctionError) Is(target error) bool {
	return target == ErrUnknownFunction
}

// RevertError is produced if an execution ended in a revert. The data
// returned by the reverting code is retained for diagnostics.
type RevertError struct {
	Data Data
}

func (e *RevertError) Error() string {
	if reason, ok := e.Reason(); ok {
		return fmt.Sprintf("%v: %s", ErrRevertedCall, reason)
	}
	if len(e.Data) == 0 {
		return ErrRevertedCall.Error()
	}
	return fmt.Sprintf("%v: %v", ErrRevertedCall, e.Data)
}

func (e *RevertError) Is(target error) bool {
	return target == ErrRevertedCall
}

// Reason decodes the returned data as a Solidity Error(string) revert
// reason. The second result is false if the data has a different shape.
func (e *RevertError) Reason() (string, bool) {
	reason, err := abi.UnpackRevert(e.Data)
	if err != nil {
		return "", false
	}
	return reason, true
}

// HaltError is produced if an execution stopped exceptionally, e.g. by
// running out of gas or executing an invalid instruction.
type HaltError struct {
	Reason string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("%v: %s", ErrHaltedCall, e.Reason)
}

func (e *HaltError) Is(target error) bool {
	return target == ErrHaltedCall
}

// ErrUnsupportedRevision is reported for unknown revision names.
type ErrUnsupportedRevision struct {
	Name string
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("unsupported revision %q", e.Name)
}
