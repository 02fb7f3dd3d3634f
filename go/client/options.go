// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package client

import (
	"github.com/Fantom-foundation/evm-sandbox/go/dispatch"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
)

// DefaultBackend is the name of the backend used unless configured otherwise.
const DefaultBackend = "geth"

// Config summarizes the options of a Client. It is populated by Options.
type Config struct {
	// Backend is the name of a registered backend.
	Backend string
	// BackendConfig is forwarded to the factory of the named backend. A nil
	// configuration selects the backend's defaults.
	BackendConfig any
	// backend, if set, is used instead of creating a named backend.
	backend sandbox.Backend
	// GasLimit is the gas limit of every transaction.
	GasLimit sandbox.Gas
	// Seed initializes the source of random account addresses.
	Seed uint64
	// Observer is informed about all dispatched transactions.
	Observer dispatch.Observer
}

func defaultConfig() Config {
	return Config{
		Backend:  DefaultBackend,
		GasLimit: dispatch.DefaultGasLimit,
	}
}

// Option is a functional option customizing a Client.
type Option func(*Config)

// WithBackend selects a registered backend by name, optionally providing a
// backend specific configuration.
func WithBackend(name string, config ...any) Option {
	return func(c *Config) {
		c.Backend = name
		c.BackendConfig = nil
		if len(config) > 0 {
			c.BackendConfig = config[0]
		}
	}
}

// WithBackendInstance makes the client use the given backend.
func WithBackendInstance(backend sandbox.Backend) Option {
	return func(c *Config) {
		c.backend = backend
	}
}

// WithGasLimit sets the gas limit of all transactions.
func WithGasLimit(limit sandbox.Gas) Option {
	return func(c *Config) {
		c.GasLimit = limit
	}
}

// WithSeed sets the seed of the random source used for generating account
// addresses, making them reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithObserver registers an observer for all dispatched transactions.
func WithObserver(observer dispatch.Observer) Option {
	return func(c *Config) {
		c.Observer = observer
	}
}
