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
	"maps"
	"sync"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
)

// ErrStaleSnapshot is returned when committing an overlay whose base state
// has been modified since the overlay was created.
const ErrStaleSnapshot = sandbox.ConstError("stale snapshot")

// Store is an in-memory account ledger. Direct mutations are limited to
// CreateAccount; all transactional changes are applied by committing an
// Overlay obtained from Snapshot.
type Store struct {
	mu       sync.RWMutex
	accounts WorldState
	version  uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{accounts: WorldState{}}
}

// NewStoreFrom creates a store holding a copy of the given accounts.
func NewStoreFrom(accounts WorldState) *Store {
	res := accounts.Clone()
	if res == nil {
		res = WorldState{}
	}
	return &Store{accounts: res}
}

// CreateAccount installs a fresh account with the given balance. An existing
// account at the same address is replaced, including its nonce, code, and
// storage; the balance is not added up.
func (s *Store) CreateAccount(address sandbox.Address, balance sandbox.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[address] = Account{Balance: balance}
	s.version++
}

// GetBalance returns the balance of the given account, zero if the account
// does not exist.
func (s *Store) GetBalance(address sandbox.Address) sandbox.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].Balance
}

func (s *Store) GetNonce(address sandbox.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].Nonce
}

func (s *Store) GetCode(address sandbox.Address) sandbox.Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.accounts[address].Code)
}

func (s *Store) GetStorage(address sandbox.Address, key sandbox.Key) sandbox.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].Storage[key]
}

func (s *Store) AccountExists(address sandbox.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.accounts[address]
	return found
}

// Accounts lists all account addresses in ascending order.
func (s *Store) Accounts() []sandbox.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.Addresses()
}

// Dump produces a deep copy of the current content of the store.
func (s *Store) Dump() WorldState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.Clone()
}

// Snapshot creates an overlay on the current state of the store. Reads on
// the overlay observe the state at the time of the snapshot; writes are
// buffered in the overlay until it is committed.
func (s *Store) Snapshot() *Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Overlay{
		store:   s,
		version: s.version,
		state:   maps.Clone(s.accounts),
		owned:   map[sandbox.Address]struct{}{},
	}
}

// Commit makes the changes recorded by the given overlay the new state of
// the store. The overlay must have been created by this store, and the store
// must not have been modified since. After a successful commit, the overlay
// can no longer be modified.
func (s *Store) Commit(overlay *Overlay) error {
	if overlay.store != s {
		return fmt.Errorf("overlay belongs to a different store")
	}
	if overlay.sealed {
		return fmt.Errorf("overlay already committed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if overlay.version != s.version {
		return fmt.Errorf("%w: base version %d, current version %d", ErrStaleSnapshot, overlay.version, s.version)
	}
	overlay.sealed = true
	overlay.journal = nil
	s.accounts = overlay.state
	s.version++
	return nil
}
