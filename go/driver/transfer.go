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
	"time"

	"github.com/Fantom-foundation/evm-sandbox/go/client"
	cliUtils "github.com/Fantom-foundation/evm-sandbox/go/driver/cli"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var TransferCmd = cli.Command{
	Action: doTransfer,
	Name:   "transfer",
	Usage:  "Transfer value between two freshly funded accounts",
	Flags: append([]cli.Flag{
		&cli.Uint64Flag{
			Name:  "amount",
			Usage: "amount of wei to transfer",
			Value: 50,
		},
		&cli.Uint64Flag{
			Name:  "balance",
			Usage: "initial balance of both accounts in wei",
			Value: 1_000_000,
		},
		&cli.IntFlag{
			Name:  "repeat",
			Usage: "number of transfers to run",
			Value: 1,
		},
	}, cliUtils.ClientFlags...),
}

func doTransfer(context *cli.Context) error {
	c, err := cliUtils.NewClient(context)
	if err != nil {
		return err
	}
	amount := sandbox.NewValue(context.Uint64("amount"))
	balance := sandbox.NewValue(context.Uint64("balance"))
	repeat := context.Int("repeat")
	if repeat < 1 {
		return fmt.Errorf("invalid number of transfers %d", repeat)
	}

	accounts := c.CreateAccountsWithBalance(2, balance)
	sender, receiver := accounts[0], accounts[1]
	log.Info("Created accounts", "sender", sender, "receiver", receiver, "balance", balance)

	var gas sandbox.Gas
	start := time.Now()
	for i := 0; i < repeat; i++ {
		used, err := c.Transfer(sender, receiver, amount)
		if err != nil {
			return fmt.Errorf("transfer %d failed: %w", i, err)
		}
		gas += used
	}
	duration := time.Since(start)

	out := context.App.Writer
	printBalances(out, c, sender, receiver)
	fmt.Fprintf(out, "%s gas used: %s\n", success("transfer succeeded"), formatGas(gas))
	fmt.Fprintf(out, "throughput: %s transfers/s\n", unitconv.FormatPrefix(float64(repeat)/duration.Seconds(), unitconv.SI, 1))
	return nil
}

func printBalances(out io.Writer, c *client.Client, accounts ...sandbox.Address) {
	for _, account := range accounts {
		fmt.Fprintf(out, "%v: %v wei\n", account, c.GetBalance(account))
	}
}
