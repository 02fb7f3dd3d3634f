// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package geth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/Fantom-foundation/evm-sandbox/go/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	sender    = sandbox.Address{0x01}
	receiver  = sandbox.Address{0x02}
	contract  = sandbox.Address{0xc0}
	testLimit = sandbox.Gas(1_000_000)
)

// asm concatenates opcodes, immediate bytes, and code fragments.
func asm(parts ...any) sandbox.Code {
	res := sandbox.Code{}
	for _, part := range parts {
		switch p := part.(type) {
		case vm.OpCode:
			res = append(res, byte(p))
		case int:
			res = append(res, byte(p))
		case sandbox.Code:
			res = append(res, p...)
		default:
			panic("unsupported code fragment")
		}
	}
	return res
}

// initCode produces init code deploying the given runtime code.
func initCode(runtime sandbox.Code) sandbox.Code {
	return asm(
		vm.PUSH1, len(runtime),
		vm.DUP1,
		vm.PUSH1, 11,
		vm.PUSH1, 0,
		vm.CODECOPY,
		vm.PUSH1, 0,
		vm.RETURN,
		runtime,
	)
}

// storeAndLog stores 42 in slot 1, emits it in a log with topic 0x77, and
// returns it.
var storeAndLog = asm(
	vm.PUSH1, 42, vm.PUSH1, 1, vm.SSTORE,
	vm.PUSH1, 42, vm.PUSH1, 0, vm.MSTORE,
	vm.PUSH1, 0x77, vm.PUSH1, 32, vm.PUSH1, 0, vm.LOG1,
	vm.PUSH1, 32, vm.PUSH1, 0, vm.RETURN,
)

func newBackend(t *testing.T, revision sandbox.Revision) *Backend {
	t.Helper()
	backend, err := NewBackend(Config{Revision: revision})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return backend
}

func newView(world state.WorldState) *state.Overlay {
	return state.NewStoreFrom(world).Snapshot()
}

func fundedSender() state.WorldState {
	return state.WorldState{
		sender: state.Account{Balance: sandbox.NewValue(1_000_000)},
	}
}

func TestBackend_IsRegistered(t *testing.T) {
	backend, err := sandbox.NewBackend("geth")
	if err != nil {
		t.Fatalf("failed to create backend through registry: %v", err)
	}
	if _, ok := backend.(*Backend); !ok {
		t.Errorf("unexpected backend type %T", backend)
	}
	if _, err := sandbox.NewBackend("GETH", Config{Revision: sandbox.R14_Prague}); err != nil {
		t.Errorf("failed to create configured backend: %v", err)
	}
	if _, err := sandbox.NewBackend("geth", "cancun"); err == nil {
		t.Errorf("expected unsupported configuration to be rejected")
	}
}

func TestBackend_UnsupportedRevisionIsRejected(t *testing.T) {
	_, err := NewBackend(Config{Revision: sandbox.Revision(99)})
	var unsupported *sandbox.ErrUnsupportedRevision
	if !errors.As(err, &unsupported) {
		t.Errorf("expected unsupported revision error, got %v", err)
	}
}

func TestBackend_ValueTransfer(t *testing.T) {
	for _, revision := range sandbox.GetAllKnownRevisions() {
		t.Run(revision.String(), func(t *testing.T) {
			backend := newBackend(t, revision)
			view := newView(fundedSender())

			outcome, err := backend.Execute(sandbox.Envelope{
				Sender:    sender,
				Recipient: &receiver,
				Value:     sandbox.NewValue(50),
				GasLimit:  testLimit,
			}, view, true)
			if err != nil {
				t.Fatalf("failed to execute transfer: %v", err)
			}
			if outcome.Kind != sandbox.Success || outcome.OutputKind != sandbox.Returned {
				t.Fatalf("unexpected outcome: %v", outcome)
			}
			if want, got := sandbox.Gas(21_000), outcome.GasUsed; want != got {
				t.Errorf("unexpected gas, wanted %d, got %d", want, got)
			}
			if want, got := sandbox.NewValue(999_950), view.GetBalance(sender); want != got {
				t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
			}
			if want, got := sandbox.NewValue(50), view.GetBalance(receiver); want != got {
				t.Errorf("unexpected receiver balance, wanted %v, got %v", want, got)
			}
			if want, got := uint64(1), view.GetNonce(sender); want != got {
				t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestBackend_TransferOverflowingReceiverBalanceHalts(t *testing.T) {
	var max sandbox.Value
	for i := range max {
		max[i] = 0xff
	}
	world := fundedSender()
	world[receiver] = state.Account{Balance: max}
	view := newView(world)

	outcome, err := newBackend(t, sandbox.R13_Cancun).Execute(sandbox.Envelope{
		Sender:    sender,
		Recipient: &receiver,
		Value:     sandbox.NewValue(5),
		GasLimit:  testLimit,
	}, view, true)
	if err != nil {
		t.Fatalf("failed to execute transfer: %v", err)
	}
	if outcome.Kind != sandbox.Halt || !strings.Contains(outcome.Reason, "balance overflow") {
		t.Errorf("unexpected outcome, wanted halt on balance overflow, got %v", outcome)
	}
	if want, got := sandbox.NewValue(1_000_000), view.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
	if got := view.GetBalance(receiver); got != max {
		t.Errorf("receiver balance modified: %v", got)
	}
	if want, got := uint64(0), view.GetNonce(sender); want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestBackend_ExecutionWithoutCommitLeavesViewUntouched(t *testing.T) {
	backend := newBackend(t, sandbox.R13_Cancun)
	world := fundedSender()
	world[contract] = state.Account{Code: storeAndLog}
	view := newView(world)
	before := view.Dump()

	outcome, err := backend.Execute(sandbox.Envelope{
		Sender:    sender,
		Recipient: &contract,
		Value:     sandbox.NewValue(10),
		GasLimit:  testLimit,
	}, view, false)
	if err != nil {
		t.Fatalf("failed to execute call: %v", err)
	}
	if outcome.Kind != sandbox.Success {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if after := view.Dump(); !before.Equal(after) {
		t.Errorf("view modified, diff: %v", before.Diff(after))
	}
}

func TestBackend_CallReportsOutputStorageAndLogs(t *testing.T) {
	backend := newBackend(t, sandbox.R13_Cancun)
	world := fundedSender()
	world[contract] = state.Account{Code: storeAndLog}
	view := newView(world)

	outcome, err := backend.Execute(sandbox.Envelope{
		Sender:    sender,
		Recipient: &contract,
		GasLimit:  testLimit,
	}, view, true)
	if err != nil {
		t.Fatalf("failed to execute call: %v", err)
	}
	if outcome.Kind != sandbox.Success {
		t.Fatalf("unexpected outcome: %v", outcome)
	}

	want := common.LeftPadBytes([]byte{42}, 32)
	if !bytes.Equal(want, outcome.Output) {
		t.Errorf("unexpected output, wanted %x, got %x", want, outcome.Output)
	}
	if outcome.GasUsed <= 21_000 {
		t.Errorf("unexpected gas, got %d", outcome.GasUsed)
	}
	if len(outcome.Logs) != 1 {
		t.Fatalf("unexpected logs: %v", outcome.Logs)
	}
	log := outcome.Logs[0]
	if log.Address != contract {
		t.Errorf("unexpected log address, wanted %v, got %v", contract, log.Address)
	}
	if len(log.Topics) != 1 || log.Topics[0] != (sandbox.Hash{31: 0x77}) {
		t.Errorf("unexpected topics: %v", log.Topics)
	}
	if !bytes.Equal(want, log.Data) {
		t.Errorf("unexpected log data, wanted %x, got %x", want, log.Data)
	}
	if got := view.GetStorage(contract, sandbox.Key{31: 1}); got != (sandbox.Word{31: 42}) {
		t.Errorf("unexpected storage value, got %v", got)
	}
}

func TestBackend_CreateDeploysRuntimeCode(t *testing.T) {
	backend := newBackend(t, sandbox.R13_Cancun)
	view := newView(fundedSender())

	outcome, err := backend.Execute(sandbox.Envelope{
		Sender:   sender,
		Input:    sandbox.Data(initCode(storeAndLog)),
		Value:    sandbox.NewValue(7),
		GasLimit: testLimit,
	}, view, true)
	if err != nil {
		t.Fatalf("failed to execute create: %v", err)
	}
	if outcome.Kind != sandbox.Success || outcome.OutputKind != sandbox.Created {
		t.Fatalf("unexpected outcome: %v", outcome)
	}

	want := sandbox.Address(crypto.CreateAddress(common.Address(sender), 0))
	if outcome.CreatedAddress != want {
		t.Errorf("unexpected address, wanted %v, got %v", want, outcome.CreatedAddress)
	}
	if got := view.GetCode(want); !bytes.Equal(got, storeAndLog) {
		t.Errorf("unexpected code, wanted %x, got %x", storeAndLog, got)
	}
	if got := view.GetBalance(want); got != sandbox.NewValue(7) {
		t.Errorf("unexpected contract balance, wanted 7, got %v", got)
	}
	// Contracts start with nonce 1.
	if got := view.GetNonce(want); got != 1 {
		t.Errorf("unexpected contract nonce, wanted 1, got %d", got)
	}
}

func TestBackend_SelfDestructInInitCodeRemovesContract(t *testing.T) {
	backend := newBackend(t, sandbox.R13_Cancun)
	view := newView(fundedSender())

	outcome, err := backend.Execute(sandbox.Envelope{
		Sender:   sender,
		Input:    sandbox.Data(asm(vm.CALLER, vm.SELFDESTRUCT)),
		Value:    sandbox.NewValue(100),
		GasLimit: testLimit,
	}, view, true)
	if err != nil {
		t.Fatalf("failed to execute create: %v", err)
	}
	if outcome.Kind != sandbox.Success {
		t.Fatalf("unexpected outcome: %v", outcome)
	}
	if view.AccountExists(outcome.CreatedAddress) {
		t.Errorf("self-destructed contract still exists")
	}
	if want, got := sandbox.NewValue(1_000_000), view.GetBalance(sender); want != got {
		t.Errorf("value not returned to sender, wanted %v, got %v", want, got)
	}
}

func TestBackend_FailedExecutions(t *testing.T) {
	tests := map[string]struct {
		code     sandbox.Code
		value    sandbox.Value
		gasLimit sandbox.Gas
		kind     sandbox.OutcomeKind
		output   sandbox.Data
		reason   string
		gasUsed  sandbox.Gas
	}{
		"revert with data": {
			code:     asm(vm.PUSH1, 0xab, vm.PUSH1, 0, vm.MSTORE8, vm.PUSH1, 1, vm.PUSH1, 0, vm.REVERT),
			gasLimit: testLimit,
			kind:     sandbox.Revert,
			output:   sandbox.Data{0xab},
		},
		"invalid instruction": {
			code:     asm(vm.INVALID),
			gasLimit: testLimit,
			kind:     sandbox.Halt,
			reason:   "invalid opcode",
			gasUsed:  testLimit,
		},
		"stack underflow": {
			code:     asm(vm.ADD),
			gasLimit: testLimit,
			kind:     sandbox.Halt,
			reason:   "stack underflow",
			gasUsed:  testLimit,
		},
		"out of gas": {
			code:     asm(vm.JUMPDEST, vm.PUSH1, 0, vm.JUMP),
			gasLimit: 50_000,
			kind:     sandbox.Halt,
			reason:   "out of gas",
			gasUsed:  50_000,
		},
		"insufficient funds": {
			value:    sandbox.NewValue(2_000_000),
			gasLimit: testLimit,
			kind:     sandbox.Halt,
			reason:   "insufficient funds",
		},
		"intrinsic gas too low": {
			gasLimit: 20_000,
			kind:     sandbox.Halt,
			reason:   "intrinsic gas too low",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			backend := newBackend(t, sandbox.R13_Cancun)
			world := fundedSender()
			world[contract] = state.Account{Code: test.code}
			view := newView(world)

			outcome, err := backend.Execute(sandbox.Envelope{
				Sender:    sender,
				Recipient: &contract,
				Value:     test.value,
				GasLimit:  test.gasLimit,
			}, view, true)
			if err != nil {
				t.Fatalf("unexpected backend failure: %v", err)
			}
			if outcome.Kind != test.kind {
				t.Fatalf("unexpected outcome, wanted %v, got %v", test.kind, outcome)
			}
			if !bytes.Equal(test.output, outcome.Output) {
				t.Errorf("unexpected output, wanted %x, got %x", test.output, outcome.Output)
			}
			if !strings.Contains(outcome.Reason, test.reason) {
				t.Errorf("unexpected reason, wanted %q, got %q", test.reason, outcome.Reason)
			}
			if test.gasUsed != 0 && outcome.GasUsed != test.gasUsed {
				t.Errorf("unexpected gas, wanted %d, got %d", test.gasUsed, outcome.GasUsed)
			}
		})
	}
}

func TestBackend_RevisionSelectsInstructionSet(t *testing.T) {
	mcopy := asm(vm.PUSH1, 0, vm.PUSH1, 0, vm.PUSH1, 0, vm.MCOPY, vm.STOP)
	tests := map[sandbox.Revision]sandbox.OutcomeKind{
		sandbox.R12_Shanghai: sandbox.Halt,
		sandbox.R13_Cancun:   sandbox.Success,
		sandbox.R14_Prague:   sandbox.Success,
	}

	for revision, want := range tests {
		t.Run(revision.String(), func(t *testing.T) {
			backend := newBackend(t, revision)
			world := fundedSender()
			world[contract] = state.Account{Code: mcopy}

			outcome, err := backend.Execute(sandbox.Envelope{
				Sender:    sender,
				Recipient: &contract,
				GasLimit:  testLimit,
			}, newView(world), false)
			if err != nil {
				t.Fatalf("unexpected backend failure: %v", err)
			}
			if outcome.Kind != want {
				t.Errorf("unexpected outcome, wanted %v, got %v", want, outcome)
			}
		})
	}
}

func TestBackend_ExistingStorageIsVisibleToContracts(t *testing.T) {
	backend := newBackend(t, sandbox.R13_Cancun)
	world := fundedSender()
	world[contract] = state.Account{
		// return sload(1)
		Code:    asm(vm.PUSH1, 1, vm.SLOAD, vm.PUSH1, 0, vm.MSTORE, vm.PUSH1, 32, vm.PUSH1, 0, vm.RETURN),
		Storage: state.Storage{{31: 1}: {31: 9}},
	}

	outcome, err := backend.Execute(sandbox.Envelope{
		Sender:    sender,
		Recipient: &contract,
		GasLimit:  testLimit,
	}, newView(world), false)
	if err != nil {
		t.Fatalf("unexpected backend failure: %v", err)
	}
	if want := common.LeftPadBytes([]byte{9}, 32); !bytes.Equal(want, outcome.Output) {
		t.Errorf("unexpected output, wanted %x, got %x", want, outcome.Output)
	}
}
