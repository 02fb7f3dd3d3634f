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

// Address represents the 160-bit (20 bytes) address of an account.
type Address [20]byte

// Key represents the 256-bit (32 bytes) key of a storage slot.
type Key [32]byte

// Word represents an arbitrary 256-bit (32 byte) word in the EVM.
type Word [32]byte

// Value represents an amount of chain currency, typically wei.
type Value [32]byte

// Hash represents the 256-bit (32 bytes) hash of a code, a block, a topic
// or similar sequence of cryptographic summary information.
type Hash [32]byte

// Code represents the byte-code of a contract.
type Code []byte

// Data represents the input or output of contract invocations.
type Data []byte

// Gas represents the type used to represent the Gas values.
type Gas int64

// Snapshot identifies a state of a StateView that modifications can be
// rolled back to.
type Snapshot int

// Log is the type summarizing a log message emitted as a side effect of a
// successful contract execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}

// Clone creates a deep copy of the log, such that the result shares no
// memory with the execution that produced it.
func (l Log) Clone() Log {
	return Log{
		Address: l.Address,
		Topics:  append([]Hash(nil), l.Topics...),
		Data:    append(Data(nil), l.Data...),
	}
}

// Revision is an enumeration of the EVM hard-forks supported by backends.
type Revision int

const (
	R12_Shanghai Revision = iota
	R13_Cancun
	R14_Prague
	numRevisions int = iota
)

// DefaultRevision is the revision used if nothing else is configured.
const DefaultRevision = R13_Cancun

// GetAllKnownRevisions returns all revisions in ascending order.
func GetAllKnownRevisions() []Revision {
	res := make([]Revision, 0, numRevisions)
	for i := 0; i < numRevisions; i++ {
		res = append(res, Revision(i))
	}
	return res
}
