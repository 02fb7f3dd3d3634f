// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/evm-sandbox/go/client"
	"github.com/Fantom-foundation/evm-sandbox/go/dispatch"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/urfave/cli/v2"
)

type backendFlagType struct {
	cli.StringFlag
}

var BackendFlag = &backendFlagType{
	cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "name of the execution backend to run transactions on",
		Value:   client.DefaultBackend,
	},
}

func (f *backendFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type gasLimitFlagType struct {
	cli.Uint64Flag
}

var GasLimitFlag = &gasLimitFlagType{
	cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "gas limit of every dispatched transaction",
		Value: uint64(dispatch.DefaultGasLimit),
	},
}

func (f *gasLimitFlagType) Fetch(context *cli.Context) (sandbox.Gas, error) {
	limit := context.Uint64(f.Name)
	if limit == 0 || limit > uint64(maxGas) {
		return 0, fmt.Errorf("invalid gas limit %d", limit)
	}
	return sandbox.Gas(limit), nil
}

const maxGas = sandbox.Gas(1<<63 - 1)

type revisionFlagType struct {
	cli.StringFlag
}

var RevisionFlag = &revisionFlagType{
	cli.StringFlag{
		Name:    "revision",
		Aliases: []string{"r"},
		Usage:   "revision of the rules transactions are executed with (geth backend only)",
		Value:   sandbox.DefaultRevision.String(),
	},
}

// Fetch returns the selected revision. The second result is false if the
// flag was not set explicitly.
func (f *revisionFlagType) Fetch(context *cli.Context) (sandbox.Revision, bool, error) {
	revision, err := sandbox.ParseRevision(context.String(f.Name))
	if err != nil {
		return 0, false, err
	}
	return revision, context.IsSet(f.Name), nil
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator deriving account addresses",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type verbosityFlagType struct {
	cli.IntFlag
}

var VerbosityFlag = &verbosityFlagType{
	cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=critical, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type deployerBalanceFlagType struct {
	cli.StringFlag
}

var DeployerBalanceFlag = &deployerBalanceFlagType{
	cli.StringFlag{
		Name:  "deployer-balance",
		Usage: "balance of the deploying account in wei",
		Value: "1000000000000000000000",
	},
}

func (f *deployerBalanceFlagType) Fetch(context *cli.Context) (sandbox.Value, error) {
	balance, ok := new(big.Int).SetString(context.String(f.Name), 0)
	if !ok {
		return sandbox.Value{}, fmt.Errorf("invalid balance %q", context.String(f.Name))
	}
	return sandbox.ValueFromBig(balance)
}

type constructorArgsFlagType struct {
	cli.StringSliceFlag
}

var ConstructorArgsFlag = &constructorArgsFlagType{
	cli.StringSliceFlag{
		Name:  "constructor-arg",
		Usage: "argument passed to the constructor, may be repeated",
	},
}

func (f *constructorArgsFlagType) Fetch(context *cli.Context) []string {
	return context.StringSlice(f.Name)
}

type cpuProfileType struct {
	cli.StringFlag
}

var CpuProfileFlag = &cpuProfileType{
	cli.StringFlag{
		Name:      "cpuprofile",
		Usage:     "store CPU profile in the provided filename",
		TakesFile: true,
	},
}

func (f *cpuProfileType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

// ClientFlags are the flags consumed by NewClient.
var ClientFlags = []cli.Flag{
	BackendFlag,
	GasLimitFlag,
	RevisionFlag,
	SeedFlag,
}
