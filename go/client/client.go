// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package client provides the entry point for running contracts in the
// sandbox. A Client owns an account store and dispatches transactions on
// it using an execution backend.
package client

import (
	"fmt"
	"sync"

	"github.com/Fantom-foundation/evm-sandbox/go/abi"
	"github.com/Fantom-foundation/evm-sandbox/go/dispatch"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/Fantom-foundation/evm-sandbox/go/state"
	"pgregory.net/rand"

	// Registers the backends available by name.
	_ "github.com/Fantom-foundation/evm-sandbox/go/backend/floria"
	_ "github.com/Fantom-foundation/evm-sandbox/go/backend/geth"
)

// Client composes an account store, a transaction dispatcher, and an
// execution backend. It is safe for concurrent use.
type Client struct {
	store      *state.Store
	dispatcher *dispatch.Dispatcher
	interfaces *abi.Cache

	randomMu sync.Mutex
	random   *rand.Rand
}

// New creates a client with an empty account store.
func New(options ...Option) (*Client, error) {
	config := defaultConfig()
	for _, option := range options {
		option(&config)
	}

	backend := config.backend
	if backend == nil {
		var err error
		backend, err = sandbox.NewBackend(config.Backend, config.BackendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend %q: %w", config.Backend, err)
		}
	}

	store := state.NewStore()
	return &Client{
		store: store,
		dispatcher: dispatch.NewDispatcher(store, backend, dispatch.Config{
			GasLimit: config.GasLimit,
			Observer: config.Observer,
		}),
		interfaces: abi.NewDefaultCache(),
		random:     rand.New(config.Seed),
	}, nil
}

// Deploy runs the given init code to create a new contract and returns its
// address and the consumed gas.
func (c *Client) Deploy(deployer sandbox.Address, code sandbox.Code, value sandbox.Value) (sandbox.Address, sandbox.Gas, error) {
	return c.dispatcher.Deploy(deployer, code, value)
}

// Call runs a read-only call. Its effects are discarded.
func (c *Client) Call(caller, target sandbox.Address, data sandbox.Data) (dispatch.Result, error) {
	return c.dispatcher.Call(caller, target, data)
}

// Transact runs a state-changing transaction. Its effects are retained if
// it succeeds.
func (c *Client) Transact(caller, target sandbox.Address, data sandbox.Data, value sandbox.Value) (dispatch.Result, error) {
	return c.dispatcher.Transact(caller, target, data, value)
}

// Transfer sends the given amount from one account to another and returns
// the consumed gas.
func (c *Client) Transfer(from, to sandbox.Address, amount sandbox.Value) (sandbox.Gas, error) {
	res, err := c.dispatcher.Transact(from, to, nil, amount)
	if err != nil {
		return 0, err
	}
	return res.GasUsed, nil
}

func (c *Client) GetBalance(address sandbox.Address) sandbox.Value {
	return c.dispatcher.GetBalance(address)
}

func (c *Client) GetNonce(address sandbox.Address) uint64 {
	return c.dispatcher.GetNonce(address)
}

func (c *Client) GetCode(address sandbox.Address) sandbox.Code {
	return c.dispatcher.GetCode(address)
}

func (c *Client) GetStorage(address sandbox.Address, key sandbox.Key) sandbox.Word {
	return c.dispatcher.GetStorage(address, key)
}

// CreateAccount creates the given account with the given balance. An
// existing account is replaced.
func (c *Client) CreateAccount(address sandbox.Address, balance sandbox.Value) {
	c.dispatcher.CreateAccount(address, balance)
}

// NewAccount creates an account with a random address and the given
// balance.
func (c *Client) NewAccount(balance sandbox.Value) sandbox.Address {
	address := c.randomAddress()
	c.CreateAccount(address, balance)
	return address
}

// CreateAccountsWithBalance creates n accounts with random addresses, each
// holding the given balance.
func (c *Client) CreateAccountsWithBalance(n int, balance sandbox.Value) []sandbox.Address {
	res := make([]sandbox.Address, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, c.NewAccount(balance))
	}
	return res
}

// Dump returns a copy of the committed state of all accounts.
func (c *Client) Dump() state.WorldState {
	return c.store.Dump()
}

// LoadArtifact loads a contract interface document from the given file.
// Identical documents are parsed only once.
func (c *Client) LoadArtifact(path string) (*abi.Interface, error) {
	return c.interfaces.LoadFile(path)
}

func (c *Client) randomAddress() sandbox.Address {
	c.randomMu.Lock()
	defer c.randomMu.Unlock()
	for {
		var address sandbox.Address
		c.random.Read(address[:])
		if !c.store.AccountExists(address) {
			return address
		}
	}
}
