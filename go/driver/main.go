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
	"os"

	"github.com/urfave/cli/v2"

	cliUtils "github.com/Fantom-foundation/evm-sandbox/go/driver/cli"
)

func main() {
	app := &cli.App{
		Name:      "sandbox",
		Usage:     "Deterministic contract execution sandbox",
		Copyright: "(c) 2024 Fantom Foundation",
		Commands: []*cli.Command{
			withCommonFlags(RunCmd),
			withCommonFlags(TransferCmd),
			&BackendsCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withCommonFlags(command cli.Command) *cli.Command {
	res := cliUtils.AddCommonFlags(command)
	return &res
}
