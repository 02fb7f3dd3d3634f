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
	"os"
	"runtime/pprof"

	"github.com/Fantom-foundation/evm-sandbox/go/backend/geth"
	"github.com/Fantom-foundation/evm-sandbox/go/client"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var commonFlags = []cli.Flag{
	CpuProfileFlag,
	VerbosityFlag,
}

// AddCommonFlags extends the given command by the logging and profiling
// flags and installs them before the command's action is run.
func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, commonFlags...)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {
		SetupLogging(VerbosityFlag.Fetch(ctx))

		if cpuprofileFilename := CpuProfileFlag.Fetch(ctx); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}

// SetupLogging installs a terminal logger filtering by the given verbosity.
func SetupLogging(verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), !color.NoColor)
	log.SetDefault(log.NewLogger(handler))
}

// NewClient creates a client configured by the ClientFlags.
func NewClient(ctx *cli.Context) (*client.Client, error) {
	backend := BackendFlag.Fetch(ctx)
	gasLimit, err := GasLimitFlag.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	revision, explicit, err := RevisionFlag.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	options := []client.Option{
		client.WithGasLimit(gasLimit),
		client.WithSeed(SeedFlag.Fetch(ctx)),
	}
	switch {
	case backend == "geth":
		options = append(options, client.WithBackend(backend, geth.Config{Revision: revision}))
	case explicit:
		return nil, fmt.Errorf("backend %q does not support selecting a revision", backend)
	default:
		options = append(options, client.WithBackend(backend))
	}
	return client.New(options...)
}
