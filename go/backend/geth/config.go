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
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/params"
)

const (
	// DefaultBlockGasLimit is the gas limit of the block all transactions
	// are executed in, unless configured otherwise.
	DefaultBlockGasLimit = 1_000_000_000
	// DefaultChainID is the chain ID reported by the CHAINID instruction,
	// unless configured otherwise.
	DefaultChainID = 1337
)

// Config summarizes the options of the geth backend.
type Config struct {
	// Revision selects the set of rules transactions are executed with.
	Revision sandbox.Revision
	// BlockGasLimit is the gas limit of the block hosting the transactions.
	// Transactions with a higher gas limit are halted. If zero, the default
	// is used.
	BlockGasLimit uint64
	// ChainID is the ID of the simulated chain. If zero, the default is used.
	ChainID uint64
}

// DefaultConfig returns the configuration used if none is provided.
func DefaultConfig() Config {
	return Config{
		Revision:      sandbox.DefaultRevision,
		BlockGasLimit: DefaultBlockGasLimit,
		ChainID:       DefaultChainID,
	}
}

func (c Config) withDefaults() Config {
	if c.BlockGasLimit == 0 {
		c.BlockGasLimit = DefaultBlockGasLimit
	}
	if c.ChainID == 0 {
		c.ChainID = DefaultChainID
	}
	return c
}

// toConfig interprets the configuration passed through the backend registry.
func toConfig(config any) (Config, error) {
	switch c := config.(type) {
	case nil:
		return DefaultConfig(), nil
	case Config:
		return c.withDefaults(), nil
	case *Config:
		if c == nil {
			return DefaultConfig(), nil
		}
		return c.withDefaults(), nil
	default:
		return Config{}, fmt.Errorf("unsupported configuration type %T", config)
	}
}

// makeChainConfig returns a chain config enabling all forks up to the given
// revision right from the genesis block. Later forks remain disabled.
func makeChainConfig(chainID uint64, revision sandbox.Revision) (*params.ChainConfig, error) {
	if revision < sandbox.R12_Shanghai || revision > sandbox.R14_Prague {
		return nil, &sandbox.ErrUnsupportedRevision{Name: revision.String()}
	}

	genesis := uint64(0)
	config := *params.AllEthashProtocolChanges
	config.ChainID = new(big.Int).SetUint64(chainID)
	config.MergeNetsplitBlock = big.NewInt(0)
	config.TerminalTotalDifficulty = big.NewInt(0)
	config.ShanghaiTime = &genesis
	config.CancunTime = nil
	config.PragueTime = nil
	if revision >= sandbox.R13_Cancun {
		config.CancunTime = &genesis
	}
	if revision >= sandbox.R14_Prague {
		config.PragueTime = &genesis
	}
	config.BlobScheduleConfig = &params.BlobScheduleConfig{
		Cancun: params.DefaultCancunBlobConfig,
		Prague: params.DefaultPragueBlobConfig,
	}
	return &config, nil
}
