// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"bytes"
	"fmt"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
)

// Overlay is a copy-on-write view on a Store. It shares unmodified accounts
// with the store and clones an account's storage on its first modification.
// All modifications are journaled so that they can be rolled back to a
// snapshot. An Overlay is not safe for concurrent use.
type Overlay struct {
	store   *Store
	version uint64
	state   WorldState
	owned   map[sandbox.Address]struct{} // accounts with a private storage map
	journal []func()                     // undo operations, oldest first
	sealed  bool
}

var _ sandbox.StateView = (*Overlay)(nil)

func (o *Overlay) AccountExists(address sandbox.Address) bool {
	_, found := o.state[address]
	return found
}

func (o *Overlay) GetBalance(address sandbox.Address) sandbox.Value {
	return o.state[address].Balance
}

func (o *Overlay) SetBalance(address sandbox.Address, value sandbox.Value) {
	account := o.modify(address)
	account.Balance = value
	o.state[address] = account
}

func (o *Overlay) GetNonce(address sandbox.Address) uint64 {
	return o.state[address].Nonce
}

func (o *Overlay) SetNonce(address sandbox.Address, nonce uint64) {
	account := o.modify(address)
	account.Nonce = nonce
	o.state[address] = account
}

func (o *Overlay) GetCode(address sandbox.Address) sandbox.Code {
	return bytes.Clone(o.state[address].Code)
}

func (o *Overlay) SetCode(address sandbox.Address, code sandbox.Code) {
	account := o.modify(address)
	account.Code = bytes.Clone(code)
	o.state[address] = account
}

func (o *Overlay) GetStorage(address sandbox.Address, key sandbox.Key) sandbox.Word {
	return o.state[address].Storage[key]
}

func (o *Overlay) SetStorage(address sandbox.Address, key sandbox.Key, value sandbox.Word) {
	account := o.modify(address)
	if _, owned := o.owned[address]; owned {
		storage := account.Storage
		previous, found := storage[key]
		o.journal = append(o.journal, func() {
			if found {
				storage[key] = previous
			} else {
				delete(storage, key)
			}
		})
	} else {
		account.Storage = account.Storage.Clone()
		o.owned[address] = struct{}{}
	}
	if account.Storage == nil {
		account.Storage = Storage{}
	}
	if value == (sandbox.Word{}) {
		delete(account.Storage, key)
	} else {
		account.Storage[key] = value
	}
	o.state[address] = account
}

func (o *Overlay) DeleteAccount(address sandbox.Address) {
	o.modify(address)
	delete(o.state, address)
	delete(o.owned, address)
}

func (o *Overlay) Accounts() []sandbox.Address {
	return o.state.Addresses()
}

func (o *Overlay) StorageKeys(address sandbox.Address) []sandbox.Key {
	return o.state[address].Storage.Keys()
}

// Dump produces a deep copy of the content of the overlay.
func (o *Overlay) Dump() WorldState {
	return o.state.Clone()
}

func (o *Overlay) CreateSnapshot() sandbox.Snapshot {
	return sandbox.Snapshot(len(o.journal))
}

func (o *Overlay) RestoreSnapshot(snapshot sandbox.Snapshot) {
	o.checkNotSealed()
	if snapshot < 0 || int(snapshot) > len(o.journal) {
		panic(fmt.Sprintf("invalid snapshot %d", snapshot))
	}
	for i := len(o.journal) - 1; i >= int(snapshot); i-- {
		o.journal[i]()
	}
	o.journal = o.journal[:snapshot]
}

// modify journals the current state of the given account and returns it.
// Storage maps of owned accounts are modified in place and need to be
// journaled per slot by the caller.
func (o *Overlay) modify(address sandbox.Address) Account {
	o.checkNotSealed()
	previous, existed := o.state[address]
	_, owned := o.owned[address]
	o.journal = append(o.journal, func() {
		if existed {
			o.state[address] = previous
		} else {
			delete(o.state, address)
		}
		if owned {
			o.owned[address] = struct{}{}
		} else {
			delete(o.owned, address)
		}
	})
	return previous
}

func (o *Overlay) checkNotSealed() {
	if o.sealed {
		panic("modification of committed overlay")
	}
}
