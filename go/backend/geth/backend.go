// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package geth provides an execution backend running transactions on the
// EVM implementation of go-ethereum.
package geth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

func init() {
	sandbox.RegisterBackendFactory("geth", func(config any) (sandbox.Backend, error) {
		c, err := toConfig(config)
		if err != nil {
			return nil, err
		}
		return NewBackend(c)
	})
}

// Backend executes transactions using the go-ethereum EVM. For every
// execution, the state view is materialized in a fresh in-memory state
// database. Effects are written back to the view for all accounts and
// storage slots touched by the execution.
type Backend struct {
	config      Config
	chainConfig *params.ChainConfig
}

var _ sandbox.Backend = (*Backend)(nil)

// NewBackend creates a backend executing transactions according to the
// given configuration.
func NewBackend(config Config) (*Backend, error) {
	config = config.withDefaults()
	chainConfig, err := makeChainConfig(config.ChainID, config.Revision)
	if err != nil {
		return nil, err
	}
	return &Backend{
		config:      config,
		chainConfig: chainConfig,
	}, nil
}

func (b *Backend) Execute(envelope sandbox.Envelope, view sandbox.StateView, commit bool) (sandbox.Outcome, error) {
	if envelope.GasLimit < 0 {
		return sandbox.Outcome{}, fmt.Errorf("invalid gas limit %d", envelope.GasLimit)
	}
	if reason, overflows := creditOverflows(envelope, view); overflows {
		return sandbox.Halted(reason, 0), nil
	}
	stateDb, err := materialize(view)
	if err != nil {
		return sandbox.Outcome{}, fmt.Errorf("failed to materialize state: %w", err)
	}

	tracker := newTouchTracker(common.Address(envelope.Sender))
	hooks := tracker.hooks()
	evm := vm.NewEVM(
		b.blockContext(),
		state.NewHookedState(stateDb, hooks),
		b.chainConfig,
		vm.Config{NoBaseFee: true, Tracer: hooks},
	)

	msg := &core.Message{
		From:      common.Address(envelope.Sender),
		To:        (*common.Address)(envelope.Recipient),
		Nonce:     stateDb.GetNonce(common.Address(envelope.Sender)),
		Value:     envelope.Value.ToBig(),
		GasLimit:  uint64(envelope.GasLimit),
		GasPrice:  new(big.Int),
		GasFeeCap: new(big.Int),
		GasTipCap: new(big.Int),
		Data:      envelope.Input,
	}
	evm.SetTxContext(core.NewEVMTxContext(msg))

	gasPool := new(core.GasPool).AddGas(b.config.BlockGasLimit)
	result, err := core.ApplyMessage(evm, msg, gasPool)
	if err != nil {
		// The transaction was rejected before execution, e.g. for lacking
		// funds or gas. There are no effects to be written back.
		log.Trace("Transaction rejected", "sender", envelope.Sender, "err", err)
		return sandbox.Halted(err.Error(), 0), nil
	}

	if commit {
		writeBack(stateDb, view, tracker)
	}

	gasUsed := sandbox.Gas(result.UsedGas)
	switch {
	case result.Err == nil:
		logs := convertLogs(stateDb.Logs())
		if envelope.IsCreate() {
			address := crypto.CreateAddress(msg.From, msg.Nonce)
			return sandbox.CreatedContract(sandbox.Address(address), gasUsed, logs), nil
		}
		return sandbox.Succeeded(result.ReturnData, gasUsed, logs), nil
	case errors.Is(result.Err, vm.ErrExecutionReverted):
		return sandbox.Reverted(result.ReturnData, gasUsed), nil
	default:
		return sandbox.Halted(result.Err.Error(), gasUsed), nil
	}
}

// creditOverflows reports whether crediting the transferred value to the
// recipient would wrap its balance. geth adds balances modulo 2^256.
func creditOverflows(envelope sandbox.Envelope, view sandbox.StateView) (string, bool) {
	if envelope.Recipient == nil || envelope.Value.IsZero() {
		return "", false
	}
	to := *envelope.Recipient
	if to == envelope.Sender || view.GetBalance(envelope.Sender).Cmp(envelope.Value) < 0 {
		return "", false
	}
	if _, overflow := sandbox.AddOverflow(view.GetBalance(to), envelope.Value); overflow {
		return fmt.Sprintf("balance overflow: address %v", to), true
	}
	return "", false
}

func (b *Backend) blockContext() vm.BlockContext {
	const blockNumber = 1
	return vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     getHash,
		BlockNumber: big.NewInt(blockNumber),
		Time:        blockNumber,
		GasLimit:    b.config.BlockGasLimit,
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		BlobBaseFee: big.NewInt(1),
		Random:      &common.Hash{},
	}
}

// getHash produces deterministic pseudo hashes for the BLOCKHASH instruction.
func getHash(number uint64) common.Hash {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], number)
	return crypto.Keccak256Hash(data[:])
}

// materialize creates an in-memory state database holding all accounts of
// the given view. The loaded state is finalized such that it is considered
// the original state by gas computations of storage updates.
func materialize(view sandbox.StateView) (*state.StateDB, error) {
	stateDb, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, err
	}
	accounts := view.Accounts()
	for _, address := range accounts {
		addr := common.Address(address)
		stateDb.CreateAccount(addr)
		stateDb.SetBalance(addr, view.GetBalance(address).ToUint256(), tracing.BalanceChangeUnspecified)
		stateDb.SetNonce(addr, view.GetNonce(address), tracing.NonceChangeUnspecified)
		if code := view.GetCode(address); len(code) > 0 {
			stateDb.SetCode(addr, code)
		}
		for _, key := range view.StorageKeys(address) {
			stateDb.SetState(addr, common.Hash(key), common.Hash(view.GetStorage(address, key)))
		}
	}
	stateDb.Finalise(false)
	log.Trace("Materialized state", "accounts", len(accounts))
	return stateDb, nil
}

// writeBack transfers the state of all accounts and slots touched by an
// execution from the state database to the view.
func writeBack(stateDb *state.StateDB, view sandbox.StateView, tracker *touchTracker) {
	for addr := range tracker.accounts {
		address := sandbox.Address(addr)
		if stateDb.HasSelfDestructed(addr) {
			view.DeleteAccount(address)
			continue
		}
		if !view.AccountExists(address) && stateDb.Empty(addr) {
			continue
		}
		view.SetBalance(address, sandbox.ValueFromUint256(stateDb.GetBalance(addr)))
		view.SetNonce(address, stateDb.GetNonce(addr))
		view.SetCode(address, stateDb.GetCode(addr))
		for slot := range tracker.slots[addr] {
			view.SetStorage(address, sandbox.Key(slot), sandbox.Word(stateDb.GetState(addr, slot)))
		}
	}
}

func convertLogs(logs []*types.Log) []sandbox.Log {
	res := make([]sandbox.Log, 0, len(logs))
	for _, l := range logs {
		topics := make([]sandbox.Hash, 0, len(l.Topics))
		for _, topic := range l.Topics {
			topics = append(topics, sandbox.Hash(topic))
		}
		res = append(res, sandbox.Log{
			Address: sandbox.Address(l.Address),
			Topics:  topics,
			Data:    l.Data,
		})
	}
	return res
}

// touchTracker records the accounts and storage slots an execution may have
// modified, using the tracing hooks of the EVM and the state database.
type touchTracker struct {
	accounts map[common.Address]struct{}
	slots    map[common.Address]map[common.Hash]struct{}
}

func newTouchTracker(sender common.Address) *touchTracker {
	return &touchTracker{
		accounts: map[common.Address]struct{}{sender: {}},
		slots:    map[common.Address]map[common.Hash]struct{}{},
	}
}

func (t *touchTracker) hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnEnter: func(_ int, _ byte, from common.Address, to common.Address, _ []byte, _ uint64, _ *big.Int) {
			t.accounts[from] = struct{}{}
			t.accounts[to] = struct{}{}
		},
		OnBalanceChange: func(addr common.Address, _, _ *big.Int, _ tracing.BalanceChangeReason) {
			t.accounts[addr] = struct{}{}
		},
		OnNonceChange: func(addr common.Address, _, _ uint64) {
			t.accounts[addr] = struct{}{}
		},
		OnStorageChange: func(addr common.Address, slot common.Hash, _, _ common.Hash) {
			t.accounts[addr] = struct{}{}
			if t.slots[addr] == nil {
				t.slots[addr] = map[common.Hash]struct{}{}
			}
			t.slots[addr][slot] = struct{}{}
		},
	}
}
