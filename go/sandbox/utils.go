// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sandbox

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"
	"strings"

	"github.com/holiman/uint256"
)

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return bytesToText(a[:])
}

func (a *Address) UnmarshalText(data []byte) error {
	return textToBytes(a[:], data)
}

// ParseAddress parses a 0x-prefixed, 40 digit hex string into an address.
// Malformed inputs are reported as ErrInvalidAddress.
func ParseAddress(s string) (Address, error) {
	var res Address
	if err := textToBytes(res[:], []byte(s)); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return res, nil
}

// MustParseAddress is like ParseAddress but panics on malformed inputs. It
// is intended for constants in tests and examples.
func MustParseAddress(s string) Address {
	res, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return res
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return bytesToText(k[:])
}

func (k *Key) UnmarshalText(data []byte) error {
	return textToBytes(k[:], data)
}

func (w Word) String() string {
	return fmt.Sprintf("0x%x", w[:])
}

func (w Word) MarshalText() ([]byte, error) {
	return bytesToText(w[:])
}

func (w *Word) UnmarshalText(data []byte) error {
	return textToBytes(w[:], data)
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

func (v Value) ToBig() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes(v[:])
}

func (v Value) String() string {
	return v.ToUint256().String()
}

func (v Value) Cmp(o Value) int {
	return bytes.Compare(v[:], o[:])
}

func (v Value) IsZero() bool {
	return v == Value{}
}

// NewValue creates a new Value instance from up to 4 uint64 arguments. The
// arguments are given in the order from most significant to least significant
// by padding leading zeros as needed. No argument results in a value of zero.
func NewValue(args ...uint64) (result Value) {
	if len(args) > 4 {
		panic("Too many arguments")
	}
	offset := 4 - len(args)
	for i := 0; i < len(args) && i < 4; i++ {
		start := (offset * 8) + i*8
		end := start + 8
		binary.BigEndian.PutUint64(result[start:end], args[i])
	}
	return
}

// ValueFromUint256 converts a *uint256.Int to a Value.
// If the input is nil, it returns 0.
func ValueFromUint256(value *uint256.Int) (result Value) {
	if value == nil {
		return result
	}
	return value.Bytes32()
}

// ValueFromBig converts a non-negative big.Int into a Value. Values that do
// not fit into 256 bits are reported as an error.
func ValueFromBig(value *big.Int) (Value, error) {
	if value == nil {
		return Value{}, nil
	}
	res, overflow := uint256.FromBig(value)
	if overflow || value.Sign() < 0 {
		return Value{}, fmt.Errorf("value out of range: %v", value)
	}
	return ValueFromUint256(res), nil
}

// Add computes a+b, wrapping around on overflow.
func Add(a, b Value) (z Value) {
	res, carry := bits.Add64(a.getInternalUint64(0), b.getInternalUint64(0), 0)
	binary.BigEndian.PutUint64(z[24:32], res)

	res, carry = bits.Add64(a.getInternalUint64(1), b.getInternalUint64(1), carry)
	binary.BigEndian.PutUint64(z[16:24], res)

	res, carry = bits.Add64(a.getInternalUint64(2), b.getInternalUint64(2), carry)
	binary.BigEndian.PutUint64(z[8:16], res)

	res, _ = bits.Add64(a.getInternalUint64(3), b.getInternalUint64(3), carry)
	binary.BigEndian.PutUint64(z[0:8], res)

	return z
}

// AddOverflow computes a+b. The second result is true if the sum does not
// fit into 256 bits, in which case the first result is wrapped around.
func AddOverflow(a, b Value) (Value, bool) {
	sum, overflow := new(uint256.Int).AddOverflow(a.ToUint256(), b.ToUint256())
	return ValueFromUint256(sum), overflow
}

// Sub computes a-b, wrapping around on underflow. Callers debiting balances
// need to check a >= b before.
func Sub(a, b Value) (z Value) {
	res, carry := bits.Sub64(a.getInternalUint64(0), b.getInternalUint64(0), 0)
	binary.BigEndian.PutUint64(z[24:32], res)

	res, carry = bits.Sub64(a.getInternalUint64(1), b.getInternalUint64(1), carry)
	binary.BigEndian.PutUint64(z[16:24], res)

	res, carry = bits.Sub64(a.getInternalUint64(2), b.getInternalUint64(2), carry)
	binary.BigEndian.PutUint64(z[8:16], res)

	res, _ = bits.Sub64(a.getInternalUint64(3), b.getInternalUint64(3), carry)
	binary.BigEndian.PutUint64(z[0:8], res)

	return z
}

func (v Value) MarshalText() ([]byte, error) {
	return bytesToText(v[:])
}

func (v *Value) UnmarshalText(data []byte) error {
	return textToBytes(v[:], data)
}

func (v Value) getInternalUint64(index int) uint64 {
	start := 24 - index*8
	end := start + 8
	return binary.BigEndian.Uint64(v[start:end])
}

func (d Data) String() string {
	return fmt.Sprintf("0x%x", []byte(d))
}

func (d Data) MarshalText() ([]byte, error) {
	return bytesToText(d)
}

func (d *Data) UnmarshalText(data []byte) error {
	res, err := DecodeHex(string(data))
	if err != nil {
		return err
	}
	*d = res
	return nil
}

// DecodeHex decodes a hex string with an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}

func bytesToText(data []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", data)), nil
}

func textToBytes(trg []byte, data []byte) error {
	s := string(data)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid format, does not start with 0x: %v", s)
	}
	data, err := hex.DecodeString(s[2:])
	if err != nil {
		return err
	}
	if want, got := len(trg), len(data); want != got {
		return fmt.Errorf("invalid format, wanted %d bytes, got %d", want, got)
	}
	copy(trg[:], data)
	return nil
}

func (r Revision) String() string {
	switch r {
	case R12_Shanghai:
		return "Shanghai"
	case R13_Cancun:
		return "Cancun"
	case R14_Prague:
		return "Prague"
	default:
		return fmt.Sprintf("Revision(%d)", r)
	}
}

// ParseRevision resolves a revision by its (case-insensitive) name.
func ParseRevision(name string) (Revision, error) {
	for _, r := range GetAllKnownRevisions() {
		if strings.EqualFold(r.String(), name) {
			return r, nil
		}
	}
	return 0, &ErrUnsupportedRevision{Name: name}
}
