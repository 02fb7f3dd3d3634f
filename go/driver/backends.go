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
	"slices"

	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"

	// registers the backends
	_ "github.com/Fantom-foundation/evm-sandbox/go/client"
)

var BackendsCmd = cli.Command{
	Action: doBackends,
	Name:   "backends",
	Usage:  "List the available execution backends",
}

func doBackends(context *cli.Context) error {
	names := maps.Keys(sandbox.GetAllRegisteredBackends())
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintln(context.App.Writer, name)
	}
	return nil
}
