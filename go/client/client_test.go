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
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Fantom-foundation/evm-sandbox/go/abi"
	"github.com/Fantom-foundation/evm-sandbox/go/dispatch"
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/mock/gomock"
)

func TestClient_UnknownBackendIsReported(t *testing.T) {
	if _, err := New(WithBackend("unknown")); err == nil {
		t.Errorf("expected creation with unknown backend to fail")
	}
}

func TestClient_BackendsAreAvailableByName(t *testing.T) {
	for _, name := range []string{"geth", "floria"} {
		t.Run(name, func(t *testing.T) {
			if _, err := New(WithBackend(name)); err != nil {
				t.Errorf("failed to create client: %v", err)
			}
		})
	}
}

func TestClient_TransferMovesFunds(t *testing.T) {
	for _, name := range []string{"geth", "floria"} {
		t.Run(name, func(t *testing.T) {
			client, err := New(WithBackend(name))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			a := sandbox.Address{0xa}
			b := sandbox.Address{0xb}
			client.CreateAccount(a, sandbox.NewValue(1_000_000))
			client.CreateAccount(b, sandbox.NewValue(1_000_000))

			gas, err := client.Transfer(a, b, sandbox.NewValue(50))
			if err != nil {
				t.Fatalf("failed to transfer: %v", err)
			}
			if gas <= 0 {
				t.Errorf("unexpected gas: %d", gas)
			}
			if want, got := sandbox.NewValue(999_950), client.GetBalance(a); want != got {
				t.Errorf("unexpected balance of a, wanted %v, got %v", want, got)
			}
			if want, got := sandbox.NewValue(1_000_050), client.GetBalance(b); want != got {
				t.Errorf("unexpected balance of b, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestClient_FailedTransferLeavesBalancesUnchanged(t *testing.T) {
	client, err := New(WithBackend("floria"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	a := sandbox.Address{0xa}
	b := sandbox.Address{0xb}
	client.CreateAccount(a, sandbox.NewValue(10))

	if _, err := client.Transfer(a, b, sandbox.NewValue(50)); !errors.Is(err, sandbox.ErrHaltedCall) {
		t.Errorf("expected halted call, got %v", err)
	}
	if want, got := sandbox.NewValue(10), client.GetBalance(a); want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
	if got := client.GetBalance(b); !got.IsZero() {
		t.Errorf("unexpected balance of receiver: %v", got)
	}
}

func TestClient_CreateAccountsWithBalance(t *testing.T) {
	client, err := New(WithBackend("floria"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	balance := ToWei(2, Ether)
	accounts := client.CreateAccountsWithBalance(10, balance)
	if len(accounts) != 10 {
		t.Fatalf("unexpected number of accounts: %d", len(accounts))
	}
	seen := map[sandbox.Address]bool{}
	for _, account := range accounts {
		if seen[account] {
			t.Errorf("duplicate account %v", account)
		}
		seen[account] = true
		if got := client.GetBalance(account); got != balance {
			t.Errorf("unexpected balance of %v, wanted %v, got %v", account, balance, got)
		}
	}
}

func TestClient_SeedMakesAddressesReproducible(t *testing.T) {
	create := func(seed uint64) []sandbox.Address {
		client, err := New(WithBackend("floria"), WithSeed(seed))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		return client.CreateAccountsWithBalance(3, sandbox.Value{})
	}
	if a, b := create(42), create(42); !slices.Equal(a, b) {
		t.Errorf("same seed produced different addresses: %v vs %v", a, b)
	}
	if a, b := create(1), create(2); slices.Equal(a, b) {
		t.Errorf("different seeds produced the same addresses: %v", a)
	}
}

func TestClient_GasLimitIsForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := sandbox.NewMockBackend(ctrl)
	client, err := New(WithBackendInstance(backend), WithGasLimit(123_456))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	backend.EXPECT().Execute(gomock.Any(), gomock.Any(), false).DoAndReturn(
		func(envelope sandbox.Envelope, _ sandbox.StateView, _ bool) (sandbox.Outcome, error) {
			if want, got := sandbox.Gas(123_456), envelope.GasLimit; want != got {
				t.Errorf("unexpected gas limit, wanted %d, got %d", want, got)
			}
			return sandbox.Succeeded(nil, 0, nil), nil
		})

	if _, err := client.Call(sandbox.Address{1}, sandbox.Address{2}, nil); err != nil {
		t.Errorf("failed to call: %v", err)
	}
}

type countingObserver struct {
	dispatched, failed int
}

func (o *countingObserver) Dispatched(dispatch.Operation, sandbox.Outcome) { o.dispatched++ }
func (o *countingObserver) Failed(dispatch.Operation, error)               { o.failed++ }

func TestClient_ObserverIsInformed(t *testing.T) {
	observer := &countingObserver{}
	client, err := New(WithBackend("floria"), WithObserver(observer))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.CreateAccount(sandbox.Address{1}, sandbox.NewValue(100))
	if _, err := client.Transfer(sandbox.Address{1}, sandbox.Address{2}, sandbox.NewValue(1)); err != nil {
		t.Fatalf("failed to transfer: %v", err)
	}
	if observer.dispatched != 1 || observer.failed != 0 {
		t.Errorf("unexpected observations: %+v", *observer)
	}
}

func newCounterInterface(t *testing.T) *abi.Interface {
	t.Helper()
	iface, err := abi.ParseHumanReadable([]string{
		"function get() view returns (uint256)",
		"function set(uint256 value)",
		"function deposit() payable",
	})
	if err != nil {
		t.Fatalf("failed to parse interface: %v", err)
	}
	return iface
}

func TestContract_InvokeRoutesByMutability(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := sandbox.NewMockBackend(ctrl)
	client, err := New(WithBackendInstance(backend))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	contract := client.At(newCounterInterface(t), sandbox.Address{0xc})
	caller := sandbox.Address{1}
	encoded := common.LeftPadBytes([]byte{7}, 32)

	gomock.InOrder(
		backend.EXPECT().Execute(gomock.Any(), gomock.Any(), false).Return(sandbox.Succeeded(encoded, 2300, nil), nil),
		backend.EXPECT().Execute(gomock.Any(), gomock.Any(), true).DoAndReturn(
			func(envelope sandbox.Envelope, _ sandbox.StateView, _ bool) (sandbox.Outcome, error) {
				selector, _ := contract.Interface().ResolveSelector("set")
				if !slices.Equal(selector[:], envelope.Input[:4]) {
					t.Errorf("unexpected selector %x", envelope.Input[:4])
				}
				return sandbox.Succeeded(nil, 26000, nil), nil
			}),
	)

	res, err := contract.Invoke(caller, "get", sandbox.Value{})
	if err != nil {
		t.Fatalf("failed to invoke get: %v", err)
	}
	if len(res.Values) != 1 || res.Values[0].(*big.Int).Int64() != 7 {
		t.Errorf("unexpected result of get: %v", res.Values)
	}
	if res.GasUsed != 2300 {
		t.Errorf("unexpected gas, wanted 2300, got %d", res.GasUsed)
	}

	res, err = contract.Invoke(caller, "set", sandbox.Value{}, big.NewInt(7))
	if err != nil {
		t.Fatalf("failed to invoke set: %v", err)
	}
	if len(res.Values) != 0 {
		t.Errorf("unexpected result of set: %v", res.Values)
	}
}

func TestContract_InvokeFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := sandbox.NewMockBackend(ctrl)
	client, err := New(WithBackendInstance(backend))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	contract := client.At(newCounterInterface(t), sandbox.Address{0xc})

	if _, err := contract.Invoke(sandbox.Address{1}, "reset", sandbox.Value{}); !errors.Is(err, sandbox.ErrUnknownFunction) {
		t.Errorf("expected unknown function error, got %v", err)
	}
	if _, err := contract.Invoke(sandbox.Address{1}, "set", sandbox.Value{}); err == nil {
		t.Errorf("expected missing arguments to be rejected")
	}
	if _, err := contract.Invoke(sandbox.Address{1}, "get", sandbox.NewValue(1)); err == nil {
		t.Errorf("expected value sent to read-only function to be rejected")
	}

	backend.EXPECT().Execute(gomock.Any(), gomock.Any(), true).Return(sandbox.Reverted(nil, 0), nil)
	if _, err := contract.Invoke(sandbox.Address{1}, "deposit", sandbox.NewValue(1)); !errors.Is(err, sandbox.ErrRevertedCall) {
		t.Errorf("expected reverted call, got %v", err)
	}
}

func TestClient_DeployContractChecksConstructorArguments(t *testing.T) {
	client, err := New(WithBackend("floria"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	iface, err := abi.Load([]byte(`{"abi":[{"type":"constructor","inputs":[{"type":"uint256"}]}],"bytecode":"0x00"}`))
	if err != nil {
		t.Fatalf("failed to load interface: %v", err)
	}
	if _, _, err := client.DeployContract(sandbox.Address{1}, iface, sandbox.Value{}); err == nil {
		t.Errorf("expected missing constructor argument to be rejected")
	}

	client.CreateAccount(sandbox.Address{1}, sandbox.Value{})
	contract, gas, err := client.DeployContract(sandbox.Address{1}, iface, sandbox.Value{}, big.NewInt(5))
	if err != nil {
		t.Fatalf("failed to deploy contract: %v", err)
	}
	if gas <= 0 {
		t.Errorf("unexpected gas: %d", gas)
	}
	// The floria backend installs the init code including the arguments.
	if want, got := 1+32, len(client.GetCode(contract.Address())); want != got {
		t.Errorf("unexpected code size, wanted %d, got %d", want, got)
	}
}

func TestToWei(t *testing.T) {
	tests := map[string]struct {
		amount uint64
		unit   Unit
		want   string
	}{
		"wei":         {5, Wei, "5"},
		"gwei":        {3, Gwei, "3000000000"},
		"ether":       {2, Ether, "2000000000000000000"},
		"large ether": {1 << 63, Ether, "9223372036854775808000000000000000000"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ToWei(test.amount, test.unit).ToBig().String(); got != test.want {
				t.Errorf("unexpected conversion, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestContract_DecodeLogsSkipsForeignAndUnknownLogs(t *testing.T) {
	client, err := New(WithBackend("floria"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	iface, err := abi.ParseHumanReadable([]string{"event Stored(address indexed who, uint256 value)"})
	if err != nil {
		t.Fatalf("failed to parse interface: %v", err)
	}
	event, found := iface.Event("Stored")
	if !found {
		t.Fatalf("event not found")
	}
	contract := client.At(iface, sandbox.Address{0xc})
	who := sandbox.Address{0x1}
	stored := sandbox.Log{
		Address: contract.Address(),
		Topics:  []sandbox.Hash{event.ID, sandbox.Hash(common.BytesToHash(who[:]))},
		Data:    common.LeftPadBytes([]byte{42}, 32),
	}
	foreign := stored.Clone()
	foreign.Address = sandbox.Address{0xd}
	unknown := stored.Clone()
	unknown.Topics[0] = sandbox.Hash{0xff}

	decoded := contract.DecodeLogs([]sandbox.Log{foreign, stored, unknown})
	if len(decoded) != 1 {
		t.Fatalf("unexpected number of decoded logs: %d", len(decoded))
	}
	if decoded[0].Event.Name != "Stored" {
		t.Errorf("unexpected event: %v", decoded[0].Event.Name)
	}
	if got := decoded[0].Values["who"].(common.Address); got != common.Address(who) {
		t.Errorf("unexpected indexed value: %v", got)
	}
	if got := decoded[0].Values["value"].(*big.Int); got.Int64() != 42 {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestClient_LoadArtifactSharesInterfaces(t *testing.T) {
	client, err := New(WithBackend("floria"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	path := filepath.Join(t.TempDir(), "counter.json")
	document := `{"abi":[{"type":"function","name":"get","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}],"bytecode":"0x00"}`
	if err := os.WriteFile(path, []byte(document), 0600); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	first, err := client.LoadArtifact(path)
	if err != nil {
		t.Fatalf("failed to load artifact: %v", err)
	}
	second, err := client.LoadArtifact(path)
	if err != nil {
		t.Fatalf("failed to load artifact: %v", err)
	}
	if first != second {
		t.Errorf("identical artifacts should share the parsed interface")
	}
	if _, err := client.LoadArtifact(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected loading a missing artifact to fail")
	}
}
