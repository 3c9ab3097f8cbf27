// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdigest

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/spectrum-node/spectrumd/fault"
)

// Length - number of bytes in the digest
const Length = 32

// default hashing parameters
const (
	DefaultMemory      = 1 << 17 // KiB, 128 MiB
	DefaultIterations  = 4
	DefaultParallelism = 1
)

// Digest - type for a block hash
// stored as little endian byte array
// represented as big endian hex value for print
// represented as little endian hex text for JSON and YAML encoding
type Digest [Length]byte

// Hasher - parameters of the memory hard proof hash
type Hasher struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultHasher - the parameters a production node uses
func DefaultHasher() Hasher {
	return Hasher{
		Memory:      DefaultMemory,
		Iterations:  DefaultIterations,
		Parallelism: DefaultParallelism,
	}
}

// Digest - compute the proof hash of a proof record
//
// the record also serves as its own salt so the hash depends only on
// the record and the parameters
func (h Hasher) Digest(record []byte) Digest {
	memory := h.Memory
	if 0 == memory {
		memory = DefaultMemory
	}
	iterations := h.Iterations
	if 0 == iterations {
		iterations = DefaultIterations
	}
	parallelism := h.Parallelism
	if 0 == parallelism {
		parallelism = DefaultParallelism
	}

	hash := argon2.IDKey(record, record, iterations, memory, parallelism, Length)

	var digest Digest
	copy(digest[:], hash)
	return digest
}

// IsZero - true for the previous hash of the first block
func (digest Digest) IsZero() bool {
	return digest == Digest{}
}

// internal function to return a reversed byte order copy of a digest
func reversed(d Digest) []byte {
	result := make([]byte, Length)
	for i := 0; i < Length; i += 1 {
		result[i] = d[Length-1-i]
	}
	return result
}

// String - big endian hex for the fmt package (for %s)
func (digest Digest) String() string {
	return hex.EncodeToString(reversed(digest))
}

// GoString - big endian hex for the fmt package (for %#v)
func (digest Digest) GoString() string {
	return "<Argon2id:" + hex.EncodeToString(reversed(digest)) + ">"
}

// Scan - convert a big endian hex representation to a digest
func (digest *Digest) Scan(state fmt.ScanState, verb rune) error {
	token, err := state.Token(true, func(c rune) bool {
		return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
	})
	if nil != err {
		return err
	}
	if len(token) != hex.EncodedLen(Length) {
		return fault.ErrInvalidDigest
	}
	buffer := make([]byte, Length)
	if _, err := hex.Decode(buffer, token); nil != err {
		return err
	}

	for i, v := range buffer {
		digest[Length-1-i] = v
	}
	return nil
}

// MarshalText - convert digest to little endian hex text
func (digest Digest) MarshalText() ([]byte, error) {
	buffer := make([]byte, hex.EncodedLen(Length))
	hex.Encode(buffer, digest[:])
	return buffer, nil
}

// UnmarshalText - convert little endian hex text into a digest
func (digest *Digest) UnmarshalText(s []byte) error {
	if Length != hex.DecodedLen(len(s)) {
		return fault.ErrInvalidDigest
	}
	_, err := hex.Decode(digest[:], s)
	return err
}

// DigestFromBytes - convert and validate little endian binary byte slice to a digest
func DigestFromBytes(digest *Digest, buffer []byte) error {
	if Length != len(buffer) {
		return fault.ErrInvalidDigest
	}
	copy(digest[:], buffer)
	return nil
}
