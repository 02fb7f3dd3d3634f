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
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/Fantom-foundation/evm-sandbox/go/abi"
	"github.com/Fantom-foundation/evm-sandbox/go/client"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// loadCounter produces an interface document of the counter contract
// including its bytecode.
func loadCounter(t *testing.T) *abi.Interface {
	t.Helper()
	declared, err := abi.ParseHumanReadable(counterInterface)
	require.NoError(t, err)
	document := fmt.Sprintf(`{
		"abi": [
			{"type":"constructor","inputs":[{"name":"initial","type":"uint256"}]},
			{"type":"function","name":"get","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
			{"type":"function","name":"add","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
			{"type":"event","name":"Added","inputs":[
				{"name":"by","type":"address","indexed":true},
				{"name":"total","type":"uint256","indexed":false}
			]}
		],
		"bytecode": "0x%x"
	}`, counterCode(declared))
	iface, err := abi.Load([]byte(document))
	require.NoError(t, err)
	return iface
}

func deployCounter(t *testing.T, c *client.Client, initial int64) (*client.Contract, sandbox.Address) {
	t.Helper()
	deployer := c.NewAccount(sandbox.NewValue(1_000_000))
	counter, gas, err := c.DeployContract(deployer, loadCounter(t), sandbox.Value{}, big.NewInt(initial))
	require.NoError(t, err)
	require.Greater(t, gas, sandbox.Gas(0))
	return counter, deployer
}

func TestContract_DeployRunsConstructor(t *testing.T) {
	c := newClient(t, "geth")
	counter, _ := deployCounter(t, c, 5)

	require.NotEmpty(t, c.GetCode(counter.Address()))
	require.Equal(t, sandbox.Word(common.BigToHash(big.NewInt(5))), c.GetStorage(counter.Address(), sandbox.Key{}))

	res, err := counter.Invoke(sandbox.Address{1}, "get", sandbox.Value{})
	require.NoError(t, err)
	require.Equal(t, []any{big.NewInt(5)}, res.Values)
	require.Greater(t, res.GasUsed, sandbox.Gas(0))
}

func TestContract_TransactionsUpdateStorageAndEmitLogs(t *testing.T) {
	c := newClient(t, "geth")
	counter, caller := deployCounter(t, c, 1)

	res, err := counter.Invoke(caller, "add", sandbox.Value{}, big.NewInt(41))
	require.NoError(t, err)
	require.Empty(t, res.Values)
	require.Len(t, res.Logs, 1)

	events := counter.DecodeLogs(res.Logs)
	require.Len(t, events, 1)
	require.Equal(t, "Added", events[0].Event.Name)
	require.Equal(t, common.Address(caller), events[0].Values["by"])
	require.Equal(t, big.NewInt(42), events[0].Values["total"])

	res, err = counter.Invoke(caller, "get", sandbox.Value{})
	require.NoError(t, err)
	require.Equal(t, []any{big.NewInt(42)}, res.Values)
}

func TestContract_CallsDoNotModifyState(t *testing.T) {
	c := newClient(t, "geth")
	counter, caller := deployCounter(t, c, 1)
	data, err := counter.Interface().EncodeCall("add", big.NewInt(1))
	require.NoError(t, err)
	before := c.Dump()

	res, err := c.Call(caller, counter.Address(), data)
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	require.True(t, before.Equal(c.Dump()), "state modified by call: %v", before.Diff(c.Dump()))
}

func TestContract_UnknownSelectorReverts(t *testing.T) {
	c := newClient(t, "geth")
	counter, caller := deployCounter(t, c, 1)
	before := c.Dump()

	_, err := c.Transact(caller, counter.Address(), sandbox.Data{1, 2, 3, 4}, sandbox.Value{})
	require.ErrorIs(t, err, sandbox.ErrRevertedCall)
	require.True(t, before.Equal(c.Dump()), "state modified: %v", before.Diff(c.Dump()))
}

func TestContract_ConcurrentTransactionsAreNotLost(t *testing.T) {
	const N = 20
	c := newClient(t, "geth")
	counter, _ := deployCounter(t, c, 0)
	callers := c.CreateAccountsWithBalance(N, sandbox.Value{})

	var wg sync.WaitGroup
	errs := make(chan error, N)
	for _, caller := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := counter.Invoke(caller, "add", sandbox.Value{}, big.NewInt(1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	res, err := counter.Invoke(callers[0], "get", sandbox.Value{})
	require.NoError(t, err)
	require.Equal(t, []any{big.NewInt(N)}, res.Values)
}

func TestContract_DeployOnFloriaInstallsInitCode(t *testing.T) {
	c := newClient(t, "floria")
	iface := loadCounter(t)
	deployer := c.NewAccount(sandbox.Value{})

	counter, _, err := c.DeployContract(deployer, iface, sandbox.Value{}, big.NewInt(1))
	require.NoError(t, err)
	data, err := iface.DeployData(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, sandbox.Code(data), c.GetCode(counter.Address()))

	_, err = counter.Invoke(deployer, "get", sandbox.Value{})
	require.ErrorIs(t, err, sandbox.ErrHaltedCall)
}
