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
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// This file provides a registry for execution backends.
//
// Backend implementations register a factory in the init code of their
// package. Thus, by importing the implementation package, the backend
// becomes available under its name in this central registry.

// BackendFactory is the type of a function that creates a new Backend
// using a backend specific configuration. A nil configuration selects the
// defaults of the implementation.
type BackendFactory func(config any) (Backend, error)

// NewBackend performs a lookup for the given name (case-insensitive) in the
// registry and creates a new Backend using the given optional configuration.
// An error is returned if no factory was registered under the given name.
func NewBackend(name string, config ...any) (Backend, error) {
	if len(config) > 1 {
		return nil, fmt.Errorf("invalid configuration: too many arguments")
	}
	factory := GetBackendFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	c := any(nil)
	if len(config) > 0 {
		c = config[0]
	}
	return factory(c)
}

// GetBackendFactory performs a lookup for the given name (case-insensitive)
// in the registry. The result is nil if no factory was registered under the
// given name.
func GetBackendFactory(name string) BackendFactory {
	backendRegistryLock.Lock()
	defer backendRegistryLock.Unlock()
	return backendRegistry[strings.ToLower(name)]
}

// GetAllRegisteredBackends obtains all registered factories.
func GetAllRegisteredBackends() map[string]BackendFactory {
	backendRegistryLock.Lock()
	defer backendRegistryLock.Unlock()
	return maps.Clone(backendRegistry)
}

// RegisterBackendFactory registers a new Backend implementation to be
// exported for general use in the binary. The name is not case-sensitive,
// and a panic is triggered if a factory was bound to the same name before,
// or the factory is nil. This function is mainly intended to be used by
// package initialization code.
func RegisterBackendFactory(name string, factory BackendFactory) {
	key := strings.ToLower(name)
	if factory == nil {
		panic(fmt.Sprintf("invalid initialization: cannot register nil-factory using `%s`", key))
	}
	backendRegistryLock.Lock()
	defer backendRegistryLock.Unlock()
	if _, found := backendRegistry[key]; found {
		panic(fmt.Sprintf("invalid initialization: multiple factories registered for `%s`", key))
	}
	backendRegistry[key] = factory
}

// backendRegistry is a global registry for Backend factories.
var backendRegistry = map[string]BackendFactory{}

// backendRegistryLock to protect access to the registry.
var backendRegistryLock sync.Mutex
