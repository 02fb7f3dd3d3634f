// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/Fantom-foundation/evm-sandbox/go/abi"
	"github.com/Fantom-foundation/evm-sandbox/go/client"
	cliUtils "github.com/Fantom-foundation/evm-sandbox/go/driver/cli"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Deploy a contract artifact and invoke one of its functions",
	ArgsUsage: "<artifact.json> <function> [args...]",
	Flags: append([]cli.Flag{
		cliUtils.DeployerBalanceFlag,
		cliUtils.ConstructorArgsFlag,
	}, cliUtils.ClientFlags...),
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
)

func doRun(context *cli.Context) error {
	if context.Args().Len() < 2 {
		return fmt.Errorf("missing arguments, usage: %s", context.Command.ArgsUsage)
	}
	path := context.Args().Get(0)
	function := context.Args().Get(1)

	c, err := cliUtils.NewClient(context)
	if err != nil {
		return err
	}
	balance, err := cliUtils.DeployerBalanceFlag.Fetch(context)
	if err != nil {
		return err
	}
	iface, err := c.LoadArtifact(path)
	if err != nil {
		return err
	}

	constructorArgs, err := parseConstructorArgs(iface, cliUtils.ConstructorArgsFlag.Fetch(context))
	if err != nil {
		return err
	}
	fn, err := iface.Function(function)
	if err != nil {
		return err
	}
	args, err := parseArgs(fn.Inputs, context.Args().Slice()[2:])
	if err != nil {
		return fmt.Errorf("invalid arguments for %v: %w", fn, err)
	}

	out := context.App.Writer
	deployer := c.NewAccount(balance)
	contract, deployGas, err := c.DeployContract(deployer, iface, sandbox.Value{}, constructorArgs...)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", failure("deployment failed:"), err)
		return err
	}
	log.Info("Deployed contract", "address", contract.Address(), "deployer", deployer, "gas", deployGas)
	fmt.Fprintf(out, "%s at %v, gas used: %s\n", success("deployed"), contract.Address(), formatGas(deployGas))

	start := time.Now()
	res, err := contract.Invoke(deployer, fn.Signature, sandbox.Value{}, args...)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", failure("invocation failed:"), err)
		return err
	}
	log.Debug("Invoked function", "function", fn.Signature, "duration", time.Since(start))

	fmt.Fprintf(out, "%s %v, gas used: %s\n", success("invoked"), fn, formatGas(res.GasUsed))
	for i, value := range res.Values {
		fmt.Fprintf(out, "  output %d (%s): %v\n", i, fn.Outputs[i], value)
	}
	printLogs(out, contract, res.Logs)
	return nil
}

func parseConstructorArgs(iface *abi.Interface, raw []string) ([]any, error) {
	params, declared := iface.ConstructorParams()
	if !declared {
		if len(raw) > 0 {
			return nil, fmt.Errorf("interface declares no constructor, got %d arguments", len(raw))
		}
		return nil, nil
	}
	args, err := parseArgs(params, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid constructor arguments: %w", err)
	}
	return args, nil
}

func printLogs(out io.Writer, contract *client.Contract, logs []sandbox.Log) {
	decoded := contract.DecodeLogs(logs)
	for _, entry := range decoded {
		names := slices.Sorted(maps.Keys(entry.Values))
		fmt.Fprintf(out, "  event %s\n", entry.Event.Signature)
		for _, name := range names {
			fmt.Fprintf(out, "    %s: %v\n", name, entry.Values[name])
		}
	}
	if skipped := len(logs) - len(decoded); skipped > 0 {
		fmt.Fprintf(out, "  %d undecodable logs\n", skipped)
	}
}

func formatGas(gas sandbox.Gas) string {
	return unitconv.FormatPrefix(float64(gas), unitconv.SI, 1)
}
