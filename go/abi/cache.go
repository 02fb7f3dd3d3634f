// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package abi

import (
	"fmt"
	"os"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of interfaces retained by NewDefaultCache.
const DefaultCacheSize = 1024

// Cache retains recently loaded interfaces, keyed by the hash of their
// documents, to avoid parsing the same document repeatedly. Since loaded
// interfaces are immutable, cached instances are shared between all users.
// A Cache is safe for concurrent use.
type Cache struct {
	interfaces *lru.Cache[sandbox.Hash, *Interface]
}

// NewCache creates a cache retaining up to size interfaces.
func NewCache(size int) (*Cache, error) {
	interfaces, err := lru.New[sandbox.Hash, *Interface](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create interface cache: %w", err)
	}
	return &Cache{interfaces: interfaces}, nil
}

// NewDefaultCache creates a cache of DefaultCacheSize.
func NewDefaultCache() *Cache {
	cache, _ := NewCache(DefaultCacheSize) // can only fail for non-positive size
	return cache
}

// Load resolves the given document, reusing the result of a previous load
// of the same document. Failures are not cached.
func (c *Cache) Load(document []byte) (*Interface, error) {
	key := keccak256(document)
	if res, found := c.interfaces.Get(key); found {
		return res, nil
	}
	res, err := Load(document)
	if err != nil {
		return nil, err
	}
	c.interfaces.Add(key, res)
	return res, nil
}

// LoadFile resolves the document stored in the given file.
func (c *Cache) LoadFile(path string) (*Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read interface document: %w", err)
	}
	res, err := c.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Len returns the number of cached interfaces.
func (c *Cache) Len() int {
	return c.interfaces.Len()
}
